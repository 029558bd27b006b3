package repository

import (
	"context"

	"bookclub/internal/models"

	"gorm.io/gorm"
)

// CounterDrift is a thread whose stored counters disagree with its rows.
type CounterDrift struct {
	ThreadID      uint
	GroupID       uint
	LikeCount     int
	ActualLikes   int
	ReplyCount    int
	ActualReplies int
}

// CounterRepository recomputes denormalized thread counters.
type CounterRepository interface {
	FindDrift(ctx context.Context, limit int) ([]CounterDrift, error)
	Repair(ctx context.Context, threadID uint) error
}

type counterRepository struct {
	db *gorm.DB
}

// NewCounterRepository returns a new CounterRepository implementation.
func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &counterRepository{db: db}
}

const (
	actualLikesSQL   = "(SELECT COUNT(*) FROM likes WHERE likes.thread_id = threads.id)"
	actualRepliesSQL = "(SELECT COUNT(*) FROM replies WHERE replies.thread_id = threads.id)"
)

func (r *counterRepository) FindDrift(ctx context.Context, limit int) ([]CounterDrift, error) {
	var drift []CounterDrift
	err := r.db.WithContext(ctx).
		Model(&models.Thread{}).
		Select("threads.id AS thread_id, threads.group_id, threads.like_count, threads.reply_count, " +
			actualLikesSQL + " AS actual_likes, " + actualRepliesSQL + " AS actual_replies").
		Where("threads.like_count <> " + actualLikesSQL + " OR threads.reply_count <> " + actualRepliesSQL).
		Order("threads.id ASC").
		Limit(limit).
		Scan(&drift).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return drift, nil
}

// Repair sets both counters from the source rows in a single UPDATE.
func (r *counterRepository) Repair(ctx context.Context, threadID uint) error {
	err := r.db.WithContext(ctx).
		Model(&models.Thread{}).
		Where("id = ?", threadID).
		UpdateColumns(map[string]interface{}{
			"like_count":  gorm.Expr(actualLikesSQL),
			"reply_count": gorm.Expr(actualRepliesSQL),
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
