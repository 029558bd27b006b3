// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"testing"

	"bookclub/internal/database"
	"bookclub/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a migrated in-memory SQLite database. The pool is pinned
// to one connection so every query sees the same in-memory schema.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	u := models.User{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: "hash",
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// CreateGroup inserts a group owned by owner with the owner membership row
// and one plain membership per extra member.
func CreateGroup(t *testing.T, db *gorm.DB, owner models.User, answer string, members ...models.User) models.Group {
	t.Helper()
	g := models.Group{
		Title:              "Dune",
		Author:             "Frank Herbert",
		OwnerID:            owner.ID,
		ModerationQuestion: "What must flow?",
		ModerationAnswer:   answer,
	}
	if err := db.Create(&g).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	rows := []models.GroupMembership{{GroupID: g.ID, UserID: owner.ID, Role: models.GroupRoleOwner}}
	for _, m := range members {
		rows = append(rows, models.GroupMembership{GroupID: g.ID, UserID: m.ID, Role: models.GroupRoleMember})
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("create memberships: %v", err)
	}
	g.ApplyMemberships(rows)
	return g
}

// CreateThread inserts a thread in g authored by author.
func CreateThread(t *testing.T, db *gorm.DB, g models.Group, author models.User, content string) models.Thread {
	t.Helper()
	th := models.Thread{GroupID: g.ID, UserID: author.ID, AuthorName: author.Username, Content: content}
	if err := db.Create(&th).Error; err != nil {
		t.Fatalf("create thread: %v", err)
	}
	return th
}
