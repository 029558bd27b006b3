// Package service holds the business rules that sit between HTTP handlers
// and repositories.
package service

import "context"

// Publisher announces writes to realtime subscribers. Paths are document
// paths such as "groups/3/threads".
type Publisher interface {
	PublishChange(ctx context.Context, paths ...string)
	NotifyUser(ctx context.Context, userID uint, event string, payload interface{})
}

// User-directed event names.
const (
	EventJoinAccepted     = "join_accepted"
	EventRemovedFromGroup = "removed_from_group"
	EventRoleChanged      = "role_changed"
)

type nopPublisher struct{}

func (nopPublisher) PublishChange(context.Context, ...string)              {}
func (nopPublisher) NotifyUser(context.Context, uint, string, interface{}) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
