package database

import "bookclub/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Group{},
		&models.GroupMembership{},
		&models.Post{},
		&models.Thread{},
		&models.Reply{},
		&models.Like{},
	}
}
