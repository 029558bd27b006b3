package docstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned for paths outside the known collection layout.
var ErrInvalidPath = errors.New("invalid document path")

// Kind identifies what a path points at.
type Kind string

const (
	KindUser    Kind = "user"    // users/{uid}
	KindGroups  Kind = "groups"  // groups
	KindGroup   Kind = "group"   // groups/{gid}
	KindThreads Kind = "threads" // groups/{gid}/threads
	KindThread  Kind = "thread"  // groups/{gid}/threads/{tid}
	KindReplies Kind = "replies" // groups/{gid}/threads/{tid}/replies
	KindLikes   Kind = "likes"   // groups/{gid}/threads/{tid}/likes
	KindPosts   Kind = "posts"   // posts
	KindPost    Kind = "post"    // posts/{pid}
)

// Ref is a parsed path.
type Ref struct {
	Kind     Kind
	UserID   uint
	GroupID  uint
	ThreadID uint
	PostID   uint
}

// IsCollection reports whether the ref names a collection rather than one document.
func (r Ref) IsCollection() bool {
	switch r.Kind {
	case KindGroups, KindThreads, KindReplies, KindLikes, KindPosts:
		return true
	}
	return false
}

// GroupScoped reports whether reading the ref requires group membership.
func (r Ref) GroupScoped() bool {
	switch r.Kind {
	case KindThreads, KindThread, KindReplies, KindLikes:
		return true
	}
	return false
}

// String renders the canonical path.
func (r Ref) String() string {
	switch r.Kind {
	case KindUser:
		return UserPath(r.UserID)
	case KindGroups:
		return GroupsPath
	case KindGroup:
		return GroupPath(r.GroupID)
	case KindThreads:
		return ThreadsPath(r.GroupID)
	case KindThread:
		return ThreadPath(r.GroupID, r.ThreadID)
	case KindReplies:
		return RepliesPath(r.GroupID, r.ThreadID)
	case KindLikes:
		return LikesPath(r.GroupID, r.ThreadID)
	case KindPosts:
		return PostsPath
	case KindPost:
		return PostPath(r.PostID)
	}
	return ""
}

const (
	GroupsPath = "groups"
	PostsPath  = "posts"
)

func UserPath(uid uint) string { return fmt.Sprintf("users/%d", uid) }

func GroupPath(gid uint) string { return fmt.Sprintf("groups/%d", gid) }

func ThreadsPath(gid uint) string { return fmt.Sprintf("groups/%d/threads", gid) }

func ThreadPath(gid, tid uint) string { return fmt.Sprintf("groups/%d/threads/%d", gid, tid) }

func RepliesPath(gid, tid uint) string { return fmt.Sprintf("groups/%d/threads/%d/replies", gid, tid) }

func LikesPath(gid, tid uint) string { return fmt.Sprintf("groups/%d/threads/%d/likes", gid, tid) }

func PostPath(pid uint) string { return fmt.Sprintf("posts/%d", pid) }

// ParsePath parses a slash-separated path. Leading and trailing slashes are ignored.
func ParsePath(p string) (Ref, error) {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	bad := fmt.Errorf("%w: %q", ErrInvalidPath, p)

	id := func(i int) (uint, bool) {
		n, err := strconv.ParseUint(segs[i], 10, 64)
		return uint(n), err == nil && n > 0
	}

	switch segs[0] {
	case "users":
		if len(segs) != 2 {
			return Ref{}, bad
		}
		uid, ok := id(1)
		if !ok {
			return Ref{}, bad
		}
		return Ref{Kind: KindUser, UserID: uid}, nil
	case "posts":
		switch len(segs) {
		case 1:
			return Ref{Kind: KindPosts}, nil
		case 2:
			pid, ok := id(1)
			if !ok {
				return Ref{}, bad
			}
			return Ref{Kind: KindPost, PostID: pid}, nil
		}
		return Ref{}, bad
	case "groups":
		if len(segs) == 1 {
			return Ref{Kind: KindGroups}, nil
		}
		gid, ok := id(1)
		if !ok {
			return Ref{}, bad
		}
		ref := Ref{Kind: KindGroup, GroupID: gid}
		if len(segs) == 2 {
			return ref, nil
		}
		if segs[2] != "threads" {
			return Ref{}, bad
		}
		if len(segs) == 3 {
			ref.Kind = KindThreads
			return ref, nil
		}
		tid, ok := id(3)
		if !ok {
			return Ref{}, bad
		}
		ref.ThreadID = tid
		switch {
		case len(segs) == 4:
			ref.Kind = KindThread
		case len(segs) == 5 && segs[4] == "replies":
			ref.Kind = KindReplies
		case len(segs) == 5 && segs[4] == "likes":
			ref.Kind = KindLikes
		default:
			return Ref{}, bad
		}
		return ref, nil
	}
	return Ref{}, bad
}

// CollectionLabel is a low-cardinality metric label for path.
func CollectionLabel(path string) string {
	ref, err := ParsePath(path)
	if err != nil {
		return "unknown"
	}
	return string(ref.Kind)
}
