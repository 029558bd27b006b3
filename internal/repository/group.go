package repository

import (
	"context"
	"errors"
	"strings"

	"bookclub/internal/cache"
	"bookclub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GroupRepository persists groups and their memberships.
type GroupRepository interface {
	CreateWithOwner(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id uint) (*models.Group, error)
	ModerationAnswer(ctx context.Context, id uint) (string, error)
	List(ctx context.Context, limit, offset int) ([]models.Group, error)
	Search(ctx context.Context, query string, limit, offset int) ([]models.Group, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Group, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	Delete(ctx context.Context, id uint) error

	GetMembership(ctx context.Context, groupID, userID uint) (*models.GroupMembership, error)
	AddMember(ctx context.Context, groupID, userID uint, role models.GroupRole) (bool, error)
	SetRole(ctx context.Context, groupID, userID uint, role models.GroupRole) error
	RemoveMember(ctx context.Context, groupID, userID uint) (bool, error)
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository returns a new GroupRepository implementation.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

// CreateWithOwner inserts the group and the owner membership in one transaction.
func (r *groupRepository) CreateWithOwner(ctx context.Context, group *models.Group) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(group).Error; err != nil {
			return err
		}
		owner := models.GroupMembership{GroupID: group.ID, UserID: group.OwnerID, Role: models.GroupRoleOwner}
		return tx.Omit(clause.Associations).Create(&owner).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	group.ModeratorIDs = []uint{group.OwnerID}
	group.MemberIDs = []uint{group.OwnerID}
	cache.InvalidateUser(ctx, group.OwnerID)
	return nil
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	err := cache.Aside(ctx, cache.GroupKey(id), &group, cache.GroupTTL, func() error {
		if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Group", id)
			}
			return models.NewInternalError(err)
		}
		groups := []models.Group{group}
		if err := r.attachMemberships(ctx, groups); err != nil {
			return err
		}
		group = groups[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// ModerationAnswer reads the answer straight from the table. Cached groups
// never carry it because the field is excluded from JSON.
func (r *groupRepository) ModerationAnswer(ctx context.Context, id uint) (string, error) {
	var answers []string
	if err := r.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).Pluck("moderation_answer", &answers).Error; err != nil {
		return "", models.NewInternalError(err)
	}
	if len(answers) == 0 {
		return "", models.NewNotFoundError("Group", id)
	}
	return answers[0], nil
}

func (r *groupRepository) List(ctx context.Context, limit, offset int) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&groups).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return groups, r.attachMemberships(ctx, groups)
}

// Search matches title or author case-insensitively.
func (r *groupRepository) Search(ctx context.Context, query string, limit, offset int) ([]models.Group, error) {
	like := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	var groups []models.Group
	if err := r.db.WithContext(ctx).
		Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(author) LIKE ? ESCAPE '\'`, like, like).
		Order("title ASC, id ASC").
		Limit(limit).Offset(offset).
		Find(&groups).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return groups, r.attachMemberships(ctx, groups)
}

func (r *groupRepository) ListForUser(ctx context.Context, userID uint) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.WithContext(ctx).
		Joins("JOIN group_memberships gm ON gm.group_id = groups.id").
		Where("gm.user_id = ?", userID).
		Order("groups.title ASC, groups.id ASC").
		Find(&groups).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return groups, r.attachMemberships(ctx, groups)
}

func (r *groupRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Group", id)
	}
	cache.InvalidateGroup(ctx, id)
	return nil
}

// Delete removes the group and everything scoped under it.
func (r *groupRepository) Delete(ctx context.Context, id uint) error {
	var memberIDs []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.GroupMembership{}).Where("group_id = ?", id).Pluck("user_id", &memberIDs).Error; err != nil {
			return err
		}
		threadIDs := tx.Model(&models.Thread{}).Select("id").Where("group_id = ?", id)
		if err := tx.Where("thread_id IN (?)", threadIDs).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("thread_id IN (?)", threadIDs).Delete(&models.Reply{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.Thread{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.GroupMembership{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Group{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Group", id)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateGroup(ctx, id)
	for _, uid := range memberIDs {
		cache.InvalidateUser(ctx, uid)
	}
	return nil
}

// GetMembership returns (nil, nil) when userID is not in the group.
func (r *groupRepository) GetMembership(ctx context.Context, groupID, userID uint) (*models.GroupMembership, error) {
	var m models.GroupMembership
	err := r.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &m, nil
}

// AddMember inserts a membership. It reports false when the user was
// already a member.
func (r *groupRepository) AddMember(ctx context.Context, groupID, userID uint, role models.GroupRole) (bool, error) {
	m := models.GroupMembership{GroupID: groupID, UserID: userID, Role: role}
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		r.invalidateMembership(ctx, groupID, userID)
	}
	return res.RowsAffected > 0, nil
}

func (r *groupRepository) SetRole(ctx context.Context, groupID, userID uint, role models.GroupRole) error {
	res := r.db.WithContext(ctx).Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("role", role)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Membership", userID)
	}
	r.invalidateMembership(ctx, groupID, userID)
	return nil
}

// RemoveMember deletes a membership. It reports false when there was none.
func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMembership{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		r.invalidateMembership(ctx, groupID, userID)
	}
	return res.RowsAffected > 0, nil
}

func (r *groupRepository) invalidateMembership(ctx context.Context, groupID, userID uint) {
	cache.InvalidateGroup(ctx, groupID)
	cache.InvalidateUser(ctx, userID)
}

// attachMemberships fills ModeratorIDs and MemberIDs with one query.
func (r *groupRepository) attachMemberships(ctx context.Context, groups []models.Group) error {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	var rows []models.GroupMembership
	if err := r.db.WithContext(ctx).
		Where("group_id IN ?", ids).
		Order("created_at ASC, user_id ASC").
		Find(&rows).Error; err != nil {
		return models.NewInternalError(err)
	}
	for i := range groups {
		groups[i].ApplyMemberships(rows)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
