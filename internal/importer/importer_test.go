package importer

import (
	"context"
	"os"
	"testing"

	"bookclub/internal/models"
	"bookclub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImport(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	export, err := os.ReadFile("testdata/export.json")
	require.NoError(t, err)

	sum, err := Import(context.Background(), db, export)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"users":   2,
		"groups":  1,
		"posts":   1,
		"threads": 1,
		"replies": 2,
		"likes":   1,
	}, sum.Imported)
	assert.Equal(t, 1, sum.Dropped["users"])
	assert.Equal(t, 1, sum.Dropped["groups"])
	assert.Equal(t, 1, sum.Dropped["posts"])
	assert.Equal(t, 1, sum.Dropped["replies"])
	assert.Equal(t, 1, sum.CountersRepaired)

	var thread models.Thread
	require.NoError(t, db.First(&thread, 100).Error)
	assert.Equal(t, uint(10), thread.GroupID)
	assert.Equal(t, 1, thread.LikeCount)
	assert.Equal(t, 2, thread.ReplyCount)

	var roles []models.GroupMembership
	require.NoError(t, db.Where("group_id = ?", 10).Order("user_id").Find(&roles).Error)
	require.Len(t, roles, 2, "unknown user 42 is skipped")
	assert.Equal(t, models.GroupRoleOwner, roles[0].Role)
	assert.Equal(t, models.GroupRoleMod, roles[1].Role)

	var user models.User
	require.NoError(t, db.First(&user, 2).Error)
	assert.Equal(t, "jessica", user.Username)
	assert.Equal(t, importedPassword, user.Password)

	var group models.Group
	require.NoError(t, db.First(&group, 10).Error)
	assert.Equal(t, "The spice", group.ModerationAnswer)
}

func TestImport_IsRepeatable(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	export, err := os.ReadFile("testdata/export.json")
	require.NoError(t, err)

	_, err = Import(context.Background(), db, export)
	require.NoError(t, err)
	sum, err := Import(context.Background(), db, export)
	require.NoError(t, err)
	assert.Zero(t, sum.CountersRepaired)

	var users, likes int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	assert.Equal(t, int64(2), users)
	assert.Equal(t, int64(1), likes)
}

func TestImport_RejectsNonObjects(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	for _, in := range []string{``, `[]`, `{"users":`, `"text"`} {
		_, err := Import(context.Background(), db, []byte(in))
		assert.ErrorIs(t, err, ErrInvalidExport, in)
	}
}
