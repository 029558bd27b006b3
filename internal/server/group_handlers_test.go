package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"bookclub/internal/docstore"
	"bookclub/internal/models"
	"bookclub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupMembershipFlow(t *testing.T) {
	env := newTestEnv(t)
	owner := createUser(t, env, "chani")
	reader := createUser(t, env, "stilgar")
	ownerToken := env.token(t, owner)
	readerToken := env.token(t, reader)

	status, body := env.do(t, http.MethodPost, "/api/groups", ownerToken, map[string]string{
		"title":               "Dune",
		"author":              "Frank Herbert",
		"moderation_question": "What must flow?",
		"moderation_answer":   "The Spice",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.NotContains(t, string(body), "The Spice")
	group := decode[models.Group](t, body)
	assert.Equal(t, []uint{owner.ID}, group.MemberIDs)
	assert.Equal(t, []uint{owner.ID}, group.ModeratorIDs)

	groupPath := fmt.Sprintf("/api/groups/%d", group.ID)

	status, body = env.do(t, http.MethodGet, groupPath+"/question", readerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "What must flow?", decode[map[string]string](t, body)["question"])

	// Outsiders cannot see discussions.
	status, _ = env.do(t, http.MethodGet, groupPath+"/threads", readerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPost, groupPath+"/join", readerToken, map[string]string{"answer": "water"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(t, http.MethodPost, groupPath+"/join", readerToken, map[string]string{"answer": "  the   SPICE "})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.ElementsMatch(t, []uint{owner.ID, reader.ID}, decode[models.Group](t, body).MemberIDs)

	status, body = env.do(t, http.MethodGet, "/api/users/me/groups", readerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Group](t, body), 1)

	// Members can promote nobody; the owner can.
	status, _ = env.do(t, http.MethodPost, fmt.Sprintf("%s/moderators/%d", groupPath, owner.ID), readerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, body = env.do(t, http.MethodPost, fmt.Sprintf("%s/moderators/%d", groupPath, reader.ID), ownerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, decode[models.Group](t, body).ModeratorIDs, reader.ID)

	status, _ = env.do(t, http.MethodPost, groupPath+"/leave", ownerToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, groupPath+"/leave", readerToken, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodGet, groupPath+"/threads", readerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestGroupHandlers_SearchAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	owner := createUser(t, env, "irulan")
	outsider := createUser(t, env, "feyd")
	g := testutil.CreateGroup(t, env.db, owner, "spice")

	status, body := env.do(t, http.MethodGet, "/api/groups/search?q=herbert", env.token(t, outsider), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Group](t, body), 1)

	status, _ = env.do(t, http.MethodGet, "/api/groups/search", env.token(t, outsider), nil)
	assert.Equal(t, http.StatusBadRequest, status)

	path := fmt.Sprintf("/api/groups/%d", g.ID)
	status, _ = env.do(t, http.MethodPut, path, env.token(t, outsider), map[string]string{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(t, http.MethodPut, path, env.token(t, owner), map[string]string{"description": "Reading in order"})
	require.Equal(t, http.StatusOK, status)
	updated := decode[models.Group](t, body)
	assert.Equal(t, "Dune", updated.Title)
	assert.Equal(t, "Reading in order", updated.Description)

	status, _ = env.do(t, http.MethodGet, "/api/groups/abc", env.token(t, owner), nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodDelete, path, env.token(t, outsider), nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, http.MethodDelete, path, env.token(t, owner), nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodGet, path, env.token(t, owner), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUploadGroupCover(t *testing.T) {
	env := newTestEnv(t)
	owner := createUser(t, env, "alia")
	member := createUser(t, env, "ghanima")
	g := testutil.CreateGroup(t, env.db, owner, "spice", member)
	path := fmt.Sprintf("/api/groups/%d/cover", g.ID)

	status, _ := env.upload(t, path, env.token(t, member), testutil.PNGBytes(t, 40, 20))
	assert.Equal(t, http.StatusForbidden, status)

	status, body := env.upload(t, path, env.token(t, owner), testutil.PNGBytes(t, 40, 20))
	require.Equal(t, http.StatusOK, status, string(body))
	cover := decode[models.Group](t, body).CoverURL
	assert.True(t, strings.HasPrefix(cover, "/media/"), cover)
	assert.True(t, strings.HasSuffix(cover, ".webp"), cover)

	// The stored file is served from the media route.
	status, _ = env.do(t, http.MethodGet, cover, "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.upload(t, path, env.token(t, owner), []byte("plain text, not an image"))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDocumentsFollowMembership(t *testing.T) {
	env := newTestEnv(t)
	owner := createUser(t, env, "jamis")
	outsider := createUser(t, env, "hawat")
	g := testutil.CreateGroup(t, env.db, owner, "spice")
	testutil.CreateThread(t, env.db, g, owner, "First impressions")

	path := "/api/docs/" + docstore.ThreadsPath(g.ID)

	status, body := env.do(t, http.MethodGet, path, env.token(t, owner), nil)
	require.Equal(t, http.StatusOK, status, string(body))
	snap := decode[docstore.Snapshot](t, body)
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, "First impressions", snap.Documents[0].Data[docstore.FieldContent])

	status, _ = env.do(t, http.MethodGet, path, env.token(t, outsider), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodGet, "/api/docs/books/1", env.token(t, owner), nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, "/api/docs/"+docstore.UserPath(owner.ID), env.token(t, outsider), nil)
	assert.Equal(t, http.StatusForbidden, status)
}
