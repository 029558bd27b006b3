// Package importer loads a document-store JSON export into the database.
//
// The export is an object of top-level collections keyed by document id:
//
//	{"users": {"1": {...}}, "groups": {"3": {..., "threads": {"7": {..., "replies": {...}, "likes": {...}}}}}, "posts": {...}}
//
// Every document goes through the same decoders the API uses, so records
// with a missing or mistyped required field are dropped and counted.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"bookclub/internal/docstore"
	"bookclub/internal/jobs"
	"bookclub/internal/middleware"
	"bookclub/internal/models"
	"bookclub/internal/observability"
	"bookclub/internal/repository"

	"github.com/tidwall/gjson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidExport is returned when the input is not a JSON object.
var ErrInvalidExport = errors.New("export is not a valid JSON object")

// importedPassword is stored for accounts that arrive without credentials.
// It is not a bcrypt hash, so such accounts cannot log in until reset.
const importedPassword = "!imported"

// Sub-collection keys nested inside group and thread documents.
const (
	keyThreads = "threads"
	keyReplies = "replies"
	keyLikes   = "likes"
)

// Summary keys.
const (
	kindUsers   = "users"
	kindGroups  = "groups"
	kindPosts   = "posts"
	kindThreads = "threads"
	kindReplies = "replies"
	kindLikes   = "likes"
)

// Summary counts imported and dropped documents per collection kind.
type Summary struct {
	Imported map[string]int
	Dropped  map[string]int
	// CountersRepaired is the number of threads whose like or reply count
	// was recomputed after import.
	CountersRepaired int
}

func newSummary() *Summary {
	return &Summary{Imported: map[string]int{}, Dropped: map[string]int{}}
}

type documents struct {
	users, groups, posts, threads, replies, likes []docstore.Document
}

// Import upserts every valid document of export into db.
func Import(ctx context.Context, db *gorm.DB, export []byte) (*Summary, error) {
	if !gjson.ValidBytes(export) || !gjson.ParseBytes(export).IsObject() {
		return nil, ErrInvalidExport
	}
	root := gjson.ParseBytes(export)
	sum := newSummary()

	var docs documents
	collect(root.Get("users"), docstore.UserPath, &docs.users)
	collect(root.Get("posts"), docstore.PostPath, &docs.posts)
	root.Get("groups").ForEach(func(key, group gjson.Result) bool {
		gid, ok := parseID(key.String())
		if !ok {
			sum.Dropped[kindGroups]++
			return true
		}
		docs.groups = append(docs.groups, document(key.String(), docstore.GroupPath(gid), group, keyThreads))

		group.Get(keyThreads).ForEach(func(tkey, thread gjson.Result) bool {
			tid, ok := parseID(tkey.String())
			if !ok {
				sum.Dropped[kindThreads]++
				return true
			}
			docs.threads = append(docs.threads, document(tkey.String(), docstore.ThreadPath(gid, tid), thread, keyReplies, keyLikes))
			collect(thread.Get(keyReplies), func(id uint) string {
				return docstore.RepliesPath(gid, tid) + "/" + strconv.FormatUint(uint64(id), 10)
			}, &docs.replies)
			collect(thread.Get(keyLikes), func(id uint) string {
				return docstore.LikesPath(gid, tid) + "/" + strconv.FormatUint(uint64(id), 10)
			}, &docs.likes)
			return true
		})
		return true
	})

	users := decode(sum, kindUsers, docs.users, docstore.UserFromDocument)
	groups := decode(sum, kindGroups, docs.groups, docstore.GroupFromDocument)
	posts := decode(sum, kindPosts, docs.posts, docstore.PostFromDocument)
	threads := decode(sum, kindThreads, docs.threads, docstore.ThreadFromDocument)
	replies := decode(sum, kindReplies, docs.replies, docstore.ReplyFromDocument)
	likes := decode(sum, kindLikes, docs.likes, docstore.LikeFromDocument)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return write(tx, sum, users, groups, posts, threads, replies, likes)
	})
	if err != nil {
		return nil, err
	}

	reconciler := jobs.NewCounterReconciler(repository.NewCounterRepository(db), nil)
	for {
		n, err := reconciler.RunOnce(ctx)
		if err != nil {
			return nil, fmt.Errorf("reconcile counters: %w", err)
		}
		if n == 0 {
			break
		}
		sum.CountersRepaired += n
	}

	middleware.Logger.Info("export imported", "imported", sum.Imported, "dropped", sum.Dropped)
	return sum, nil
}

func parseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// document builds a Document from an export object, leaving out nested
// sub-collections.
func document(id, path string, value gjson.Result, skip ...string) docstore.Document {
	data, _ := value.Value().(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
	}
	for _, k := range skip {
		delete(data, k)
	}
	return docstore.Document{ID: id, Path: path, Data: data}
}

// collect appends one Document per entry of a collection object. Entries
// whose key is not an id keep an empty path and fail to decode later.
func collect(coll gjson.Result, pathOf func(uint) string, out *[]docstore.Document) {
	coll.ForEach(func(key, value gjson.Result) bool {
		path := ""
		if id, ok := parseID(key.String()); ok {
			path = pathOf(id)
		}
		*out = append(*out, document(key.String(), path, value))
		return true
	})
}

// decode maps docs and counts the ones that fail under kind.
func decode[T any](sum *Summary, kind string, docs []docstore.Document, fn func(docstore.Document) (T, error)) []T {
	out, dropped := docstore.MapDocuments(docs, fn)
	if dropped > 0 {
		sum.Dropped[kind] += dropped
		observability.DroppedDocuments.WithLabelValues(kind).Add(float64(dropped))
	}
	return out
}

func write(
	tx *gorm.DB,
	sum *Summary,
	users []models.User,
	groups []models.Group,
	posts []models.Post,
	threads []models.Thread,
	replies []models.Reply,
	likes []models.Like,
) error {
	upsert := tx.Clauses(clause.OnConflict{UpdateAll: true}).Session(&gorm.Session{})
	skipExisting := tx.Clauses(clause.OnConflict{DoNothing: true}).Session(&gorm.Session{})
	// Stored counters come from reconciliation, never from the export.
	upsertThread := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"author_name", "content", "updated_at"}),
	}).Session(&gorm.Session{})

	known := map[uint]bool{}
	var existing []uint
	if err := tx.Model(&models.User{}).Pluck("id", &existing).Error; err != nil {
		return err
	}
	for _, id := range existing {
		known[id] = true
	}

	for i := range users {
		users[i].Password = importedPassword
		if err := upsert.Create(&users[i]).Error; err != nil {
			return fmt.Errorf("import user %d: %w", users[i].ID, err)
		}
		known[users[i].ID] = true
	}
	sum.Imported[kindUsers] += len(users)

	groupIDs := map[uint]bool{}
	for i := range groups {
		g := groups[i]
		if !known[g.OwnerID] {
			sum.Dropped[kindGroups]++
			continue
		}
		if err := upsert.Create(&g).Error; err != nil {
			return fmt.Errorf("import group %d: %w", g.ID, err)
		}
		groupIDs[g.ID] = true
		sum.Imported[kindGroups]++

		if rows := memberships(g, known); len(rows) > 0 {
			if err := skipExisting.Create(&rows).Error; err != nil {
				return fmt.Errorf("import members of group %d: %w", g.ID, err)
			}
		}
	}

	for i := range posts {
		if !known[posts[i].UserID] {
			sum.Dropped[kindPosts]++
			continue
		}
		if err := upsert.Create(&posts[i]).Error; err != nil {
			return fmt.Errorf("import post %d: %w", posts[i].ID, err)
		}
		sum.Imported[kindPosts]++
	}

	threadIDs := map[uint]bool{}
	for i := range threads {
		t := threads[i]
		if !groupIDs[t.GroupID] || !known[t.UserID] {
			sum.Dropped[kindThreads]++
			continue
		}
		if err := upsertThread.Create(&t).Error; err != nil {
			return fmt.Errorf("import thread %d: %w", t.ID, err)
		}
		threadIDs[t.ID] = true
		sum.Imported[kindThreads]++
	}

	for i := range replies {
		if !threadIDs[replies[i].ThreadID] || !known[replies[i].UserID] {
			sum.Dropped[kindReplies]++
			continue
		}
		if err := upsert.Create(&replies[i]).Error; err != nil {
			return fmt.Errorf("import reply %d: %w", replies[i].ID, err)
		}
		sum.Imported[kindReplies]++
	}

	for i := range likes {
		if !threadIDs[likes[i].ThreadID] || !known[likes[i].UserID] {
			sum.Dropped[kindLikes]++
			continue
		}
		res := skipExisting.Create(&likes[i])
		if res.Error != nil {
			return fmt.Errorf("import like %d: %w", likes[i].ID, res.Error)
		}
		sum.Imported[kindLikes]++
	}

	return resetSequences(tx)
}

// memberships derives rows from the owner, moderator and member ids. Ids
// of unknown users are skipped.
func memberships(g models.Group, known map[uint]bool) []models.GroupMembership {
	roles := map[uint]models.GroupRole{g.OwnerID: models.GroupRoleOwner}
	for _, id := range g.MemberIDs {
		if _, ok := roles[id]; !ok {
			roles[id] = models.GroupRoleMember
		}
	}
	for _, id := range g.ModeratorIDs {
		if roles[id] != models.GroupRoleOwner {
			roles[id] = models.GroupRoleMod
		}
	}

	rows := make([]models.GroupMembership, 0, len(roles))
	for id, role := range roles {
		if !known[id] {
			continue
		}
		rows = append(rows, models.GroupMembership{GroupID: g.ID, UserID: id, Role: role})
	}
	return rows
}

// resetSequences moves PostgreSQL id sequences past the explicit ids.
func resetSequences(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	for _, table := range []string{"users", "groups", "posts", "threads", "replies", "likes"} {
		err := tx.Exec(fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), GREATEST((SELECT COALESCE(MAX(id), 1) FROM %[1]s), 1), true)`,
			table)).Error
		if err != nil {
			return fmt.Errorf("failed to reset %s sequence: %w", table, err)
		}
	}
	return nil
}
