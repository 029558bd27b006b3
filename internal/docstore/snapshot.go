package docstore

import (
	"strings"
	"time"

	"bookclub/internal/models"
)

// Snapshot is the state of one path at ReadAt. A document path yields at
// most one document; a missing document yields an empty snapshot.
type Snapshot struct {
	Path      string     `json:"path"`
	Documents []Document `json:"documents"`
	ReadAt    time.Time  `json:"read_at"`
}

// NewSnapshot stamps docs with the current time.
func NewSnapshot(path string, docs []Document) Snapshot {
	if docs == nil {
		docs = []Document{}
	}
	return Snapshot{Path: path, Documents: docs, ReadAt: time.Now().UTC()}
}

func GroupDocuments(groups []models.Group) []Document {
	out := make([]Document, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupDocument(g))
	}
	return out
}

func PostDocuments(posts []models.Post) []Document {
	out := make([]Document, 0, len(posts))
	for _, p := range posts {
		out = append(out, PostDocument(p))
	}
	return out
}

func ThreadDocuments(threads []models.Thread) []Document {
	out := make([]Document, 0, len(threads))
	for _, t := range threads {
		out = append(out, ThreadDocument(t))
	}
	return out
}

func ReplyDocuments(gid uint, replies []models.Reply) []Document {
	out := make([]Document, 0, len(replies))
	for _, r := range replies {
		out = append(out, ReplyDocument(gid, r))
	}
	return out
}

func LikeDocuments(gid uint, likes []models.Like) []Document {
	out := make([]Document, 0, len(likes))
	for _, l := range likes {
		out = append(out, LikeDocument(gid, l))
	}
	return out
}

func splitPath(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}
