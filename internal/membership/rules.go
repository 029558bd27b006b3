// Package membership holds the rules that gate group content: answer
// matching for joins and role checks for reads and moderation.
package membership

import (
	"strings"
	"unicode"

	"bookclub/internal/models"
)

// NormalizeAnswer trims s, collapses runs of whitespace to one space and
// lower-cases it.
func NormalizeAnswer(s string) string {
	return strings.ToLower(strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " "))
}

// AnswerMatches compares answers after normalization. An empty expected
// answer never matches, so a group without an answer cannot be joined.
func AnswerMatches(expected, given string) bool {
	want := NormalizeAnswer(expected)
	if want == "" {
		return false
	}
	return want == NormalizeAnswer(given)
}

// IsMember reports whether uid appears in ids.
func IsMember(ids []uint, uid uint) bool {
	if uid == 0 {
		return false
	}
	for _, id := range ids {
		if id == uid {
			return true
		}
	}
	return false
}

// CanModerate reports whether uid is the owner or a moderator of g.
func CanModerate(g *models.Group, uid uint) bool {
	if g == nil {
		return false
	}
	return IsOwner(g, uid) || IsMember(g.ModeratorIDs, uid)
}

// IsOwner reports whether uid owns g.
func IsOwner(g *models.Group, uid uint) bool {
	return g != nil && uid != 0 && g.OwnerID == uid
}

// CanRead reports whether uid may see group-scoped content of g.
func CanRead(g *models.Group, uid uint) bool {
	if g == nil {
		return false
	}
	return IsOwner(g, uid) || IsMember(g.MemberIDs, uid)
}

// VisibleThreads returns the threads of g only when uid is a member; the
// result is empty otherwise.
func VisibleThreads(g *models.Group, uid uint, threads []models.Thread) []models.Thread {
	if !CanRead(g, uid) {
		return []models.Thread{}
	}
	out := make([]models.Thread, 0, len(threads))
	for _, t := range threads {
		if t.GroupID == g.ID {
			out = append(out, t)
		}
	}
	return out
}
