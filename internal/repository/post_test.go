package repository

import (
	"context"
	"testing"
	"time"

	"bookclub/internal/models"
	"bookclub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_FeedNewestFirst(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	base := time.Now().Add(-time.Hour)
	for i, title := range []string{"old", "mid", "new"} {
		p := &models.Post{UserID: author.ID, AuthorName: author.Username, Title: title, Body: "b", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, repo.Create(ctx, p))
	}

	feed, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "new", feed[0].Title)
	assert.Equal(t, "mid", feed[1].Title)

	require.NoError(t, repo.Delete(ctx, feed[0].ID))
	_, err = repo.GetByID(ctx, feed[0].ID)
	assert.Equal(t, 404, models.StatusFor(err))
	assert.Equal(t, 404, models.StatusFor(repo.Delete(ctx, feed[0].ID)))
}
