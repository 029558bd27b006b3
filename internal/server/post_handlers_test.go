package server

import (
	"fmt"
	"net/http"
	"testing"

	"bookclub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostHandlers_Feed(t *testing.T) {
	env := newTestEnv(t)
	author := createUser(t, env, "thufir")
	other := createUser(t, env, "piter")

	for _, title := range []string{"Mentat notes", "Spice economics"} {
		status, body := env.do(t, http.MethodPost, "/api/posts", env.token(t, author), map[string]string{
			"title": title,
			"body":  "Thoughts on " + title,
		})
		require.Equal(t, http.StatusCreated, status, string(body))
		assert.Equal(t, "thufir", decode[models.Post](t, body).AuthorName)
	}

	status, _ := env.do(t, http.MethodPost, "/api/posts", env.token(t, author), map[string]string{"title": "No body"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := env.do(t, http.MethodGet, "/api/posts", env.token(t, other), nil)
	require.Equal(t, http.StatusOK, status)
	feed := decode[[]models.Post](t, body)
	require.Len(t, feed, 2)
	assert.Equal(t, "Spice economics", feed[0].Title, "newest first")

	path := fmt.Sprintf("/api/posts/%d", feed[0].ID)
	status, _ = env.do(t, http.MethodDelete, path, env.token(t, other), nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, http.MethodDelete, path, env.token(t, author), nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodGet, path, env.token(t, author), nil)
	assert.Equal(t, http.StatusNotFound, status)
}
