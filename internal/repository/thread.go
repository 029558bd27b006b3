package repository

import (
	"context"
	"errors"

	"bookclub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThreadRepository persists threads, replies and likes. Counter columns are
// only changed with in-database increments inside the same transaction as
// the row that justifies them.
type ThreadRepository interface {
	Create(ctx context.Context, thread *models.Thread) error
	GetByID(ctx context.Context, groupID, threadID uint) (*models.Thread, error)
	List(ctx context.Context, groupID uint, limit, offset int) ([]models.Thread, error)
	UpdateContent(ctx context.Context, threadID uint, content string) error
	Delete(ctx context.Context, threadID uint) error

	CreateReply(ctx context.Context, reply *models.Reply) error
	GetReply(ctx context.Context, threadID, replyID uint) (*models.Reply, error)
	ListReplies(ctx context.Context, threadID uint, limit, offset int) ([]models.Reply, error)
	DeleteReply(ctx context.Context, reply *models.Reply) error

	Like(ctx context.Context, threadID, userID uint) (bool, error)
	Unlike(ctx context.Context, threadID, userID uint) (bool, error)
	ListLikes(ctx context.Context, threadID uint) ([]models.Like, error)
	LikedThreadIDs(ctx context.Context, userID uint, threadIDs []uint) ([]uint, error)
}

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository returns a new ThreadRepository implementation.
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) Create(ctx context.Context, thread *models.Thread) error {
	thread.LikeCount, thread.ReplyCount = 0, 0
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(thread).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetByID loads a thread and checks it belongs to groupID.
func (r *threadRepository) GetByID(ctx context.Context, groupID, threadID uint) (*models.Thread, error) {
	var thread models.Thread
	err := r.db.WithContext(ctx).Where("id = ? AND group_id = ?", threadID, groupID).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Thread", threadID)
		}
		return nil, models.NewInternalError(err)
	}
	return &thread, nil
}

// List returns a group's threads newest first.
func (r *threadRepository) List(ctx context.Context, groupID uint, limit, offset int) ([]models.Thread, error) {
	threads := []models.Thread{}
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&threads).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return threads, nil
}

func (r *threadRepository) UpdateContent(ctx context.Context, threadID uint, content string) error {
	res := r.db.WithContext(ctx).Model(&models.Thread{}).Where("id = ?", threadID).Update("content", content)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Thread", threadID)
	}
	return nil
}

// Delete removes the thread with its replies and likes.
func (r *threadRepository) Delete(ctx context.Context, threadID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", threadID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("thread_id = ?", threadID).Delete(&models.Reply{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Thread{}, threadID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Thread", threadID)
		}
		return nil
	})
	return wrapTxError(err)
}

// CreateReply inserts the reply and bumps reply_count in one transaction.
func (r *threadRepository) CreateReply(ctx context.Context, reply *models.Reply) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(reply).Error; err != nil {
			return err
		}
		return bumpCounter(tx, reply.ThreadID, "reply_count", 1)
	})
	return wrapTxError(err)
}

func (r *threadRepository) GetReply(ctx context.Context, threadID, replyID uint) (*models.Reply, error) {
	var reply models.Reply
	err := r.db.WithContext(ctx).Where("id = ? AND thread_id = ?", replyID, threadID).First(&reply).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Reply", replyID)
		}
		return nil, models.NewInternalError(err)
	}
	return &reply, nil
}

// ListReplies returns replies oldest first, the reading order of a discussion.
func (r *threadRepository) ListReplies(ctx context.Context, threadID uint, limit, offset int) ([]models.Reply, error) {
	replies := []models.Reply{}
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Limit(limit).Offset(offset).
		Find(&replies).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return replies, nil
}

// DeleteReply removes the reply and decrements reply_count in one transaction.
func (r *threadRepository) DeleteReply(ctx context.Context, reply *models.Reply) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Reply{}, reply.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Reply", reply.ID)
		}
		return bumpCounter(tx, reply.ThreadID, "reply_count", -1)
	})
	return wrapTxError(err)
}

// Like records a like and increments like_count when the row is new.
// It reports whether anything changed.
func (r *threadRepository) Like(ctx context.Context, threadID, userID uint) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		like := models.Like{ThreadID: threadID, UserID: userID}
		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		return bumpCounter(tx, threadID, "like_count", 1)
	})
	if err != nil {
		return false, wrapTxError(err)
	}
	return changed, nil
}

// Unlike hard-deletes the like and decrements like_count when a row was removed.
func (r *threadRepository) Unlike(ctx context.Context, threadID, userID uint) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("thread_id = ? AND user_id = ?", threadID, userID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		return bumpCounter(tx, threadID, "like_count", -1)
	})
	if err != nil {
		return false, wrapTxError(err)
	}
	return changed, nil
}

func (r *threadRepository) ListLikes(ctx context.Context, threadID uint) ([]models.Like, error) {
	likes := []models.Like{}
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Find(&likes).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return likes, nil
}

func (r *threadRepository) LikedThreadIDs(ctx context.Context, userID uint, threadIDs []uint) ([]uint, error) {
	if len(threadIDs) == 0 || userID == 0 {
		return nil, nil
	}
	var liked []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND thread_id IN ?", userID, threadIDs).
		Pluck("thread_id", &liked).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return liked, nil
}

// bumpCounter applies an in-database increment. Decrements never go below zero.
func bumpCounter(tx *gorm.DB, threadID uint, column string, delta int) error {
	expr := gorm.Expr(column+" + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN "+column+" >= ? THEN "+column+" - ? ELSE 0 END", -delta, -delta)
	}
	res := tx.Model(&models.Thread{}).Where("id = ?", threadID).UpdateColumn(column, expr)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Thread", threadID)
	}
	return nil
}

func wrapTxError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}
