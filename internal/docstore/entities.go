package docstore

import (
	"strconv"
	"time"

	"bookclub/internal/models"
)

// Field names shared by encoders, decoders and the export importer.
const (
	FieldUsername           = "username"
	FieldEmail              = "email"
	FieldAvatarURL          = "avatar_url"
	FieldBio                = "bio"
	FieldGroupIDs           = "group_ids"
	FieldTitle              = "title"
	FieldAuthor             = "author"
	FieldCoverURL           = "cover_url"
	FieldDescription        = "description"
	FieldOwnerID            = "owner_id"
	FieldModeratorIDs       = "moderator_ids"
	FieldMemberIDs          = "member_ids"
	FieldModerationQuestion = "moderation_question"
	FieldModerationAnswer   = "moderation_answer"
	FieldAuthorName         = "author_name"
	FieldAuthorID           = "author_id"
	FieldBody               = "body"
	FieldContent            = "content"
	FieldLikeCount          = "like_count"
	FieldReplyCount         = "reply_count"
	FieldLiked              = "liked"
	FieldUserID             = "user_id"
	FieldCreatedAt          = "created_at"
	FieldUpdatedAt          = "updated_at"
)

func docID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func stamp(created, updated time.Time) time.Time {
	if updated.After(created) {
		return updated
	}
	return created
}

// UserDocument encodes a profile under users/{uid}.
func UserDocument(u models.User) Document {
	groupIDs := u.GroupIDs
	if groupIDs == nil {
		groupIDs = []uint{}
	}
	return Document{
		ID:   docID(u.ID),
		Path: UserPath(u.ID),
		Data: map[string]any{
			FieldUsername:  u.Username,
			FieldEmail:     u.Email,
			FieldAvatarURL: u.AvatarURL,
			FieldBio:       u.Bio,
			FieldGroupIDs:  groupIDs,
			FieldCreatedAt: u.CreatedAt,
		},
		UpdateTime: stamp(u.CreatedAt, u.UpdatedAt),
	}
}

// UserFromDocument decodes a profile. Username, email and created_at are required.
func UserFromDocument(doc Document) (models.User, error) {
	id, err := doc.DocID()
	if err != nil {
		return models.User{}, err
	}
	username, err := doc.RequireString(FieldUsername)
	if err != nil {
		return models.User{}, err
	}
	email, err := doc.RequireString(FieldEmail)
	if err != nil {
		return models.User{}, err
	}
	created, err := doc.RequireTime(FieldCreatedAt)
	if err != nil {
		return models.User{}, err
	}
	return models.User{
		ID:        id,
		Username:  username,
		Email:     email,
		AvatarURL: doc.OptionalString(FieldAvatarURL),
		Bio:       doc.OptionalString(FieldBio),
		GroupIDs:  doc.OptionalIDSlice(FieldGroupIDs),
		CreatedAt: created,
		UpdatedAt: doc.UpdateTime,
	}, nil
}

// GroupDocument encodes a group under groups/{gid}. The moderation answer is
// never part of a readable document.
func GroupDocument(g models.Group) Document {
	mods, members := g.ModeratorIDs, g.MemberIDs
	if mods == nil {
		mods = []uint{}
	}
	if members == nil {
		members = []uint{}
	}
	return Document{
		ID:   docID(g.ID),
		Path: GroupPath(g.ID),
		Data: map[string]any{
			FieldTitle:              g.Title,
			FieldAuthor:             g.Author,
			FieldCoverURL:           g.CoverURL,
			FieldDescription:        g.Description,
			FieldOwnerID:            g.OwnerID,
			FieldModeratorIDs:       mods,
			FieldMemberIDs:          members,
			FieldModerationQuestion: g.ModerationQuestion,
			FieldCreatedAt:          g.CreatedAt,
			FieldUpdatedAt:          g.UpdatedAt,
		},
		UpdateTime: stamp(g.CreatedAt, g.UpdatedAt),
	}
}

// GroupFromDocument decodes a group. Title, author, owner, question and
// created_at are required. An answer is only present in exports.
func GroupFromDocument(doc Document) (models.Group, error) {
	id, err := doc.DocID()
	if err != nil {
		return models.Group{}, err
	}
	title, err := doc.RequireString(FieldTitle)
	if err != nil {
		return models.Group{}, err
	}
	author, err := doc.RequireString(FieldAuthor)
	if err != nil {
		return models.Group{}, err
	}
	owner, err := doc.RequireID(FieldOwnerID)
	if err != nil {
		return models.Group{}, err
	}
	question, err := doc.RequireString(FieldModerationQuestion)
	if err != nil {
		return models.Group{}, err
	}
	created, err := doc.RequireTime(FieldCreatedAt)
	if err != nil {
		return models.Group{}, err
	}
	return models.Group{
		ID:                 id,
		Title:              title,
		Author:             author,
		CoverURL:           doc.OptionalString(FieldCoverURL),
		Description:        doc.OptionalString(FieldDescription),
		OwnerID:            owner,
		ModerationQuestion: question,
		ModerationAnswer:   doc.OptionalString(FieldModerationAnswer),
		ModeratorIDs:       doc.OptionalIDSlice(FieldModeratorIDs),
		MemberIDs:          doc.OptionalIDSlice(FieldMemberIDs),
		CreatedAt:          created,
		UpdatedAt:          doc.OptionalTime(FieldUpdatedAt),
	}, nil
}

// PostDocument encodes a feed post under posts/{pid}.
func PostDocument(p models.Post) Document {
	return Document{
		ID:   docID(p.ID),
		Path: PostPath(p.ID),
		Data: map[string]any{
			FieldAuthorName: p.AuthorName,
			FieldAuthorID:   p.UserID,
			FieldTitle:      p.Title,
			FieldBody:       p.Body,
			FieldCreatedAt:  p.CreatedAt,
		},
		UpdateTime: p.CreatedAt,
	}
}

// PostFromDocument decodes a post. Every field is required.
func PostFromDocument(doc Document) (models.Post, error) {
	id, err := doc.DocID()
	if err != nil {
		return models.Post{}, err
	}
	authorName, err := doc.RequireString(FieldAuthorName)
	if err != nil {
		return models.Post{}, err
	}
	authorID, err := doc.RequireID(FieldAuthorID)
	if err != nil {
		return models.Post{}, err
	}
	title, err := doc.RequireString(FieldTitle)
	if err != nil {
		return models.Post{}, err
	}
	body, err := doc.RequireString(FieldBody)
	if err != nil {
		return models.Post{}, err
	}
	created, err := doc.RequireTime(FieldCreatedAt)
	if err != nil {
		return models.Post{}, err
	}
	return models.Post{
		ID:         id,
		UserID:     authorID,
		AuthorName: authorName,
		Title:      title,
		Body:       body,
		CreatedAt:  created,
	}, nil
}

// ThreadDocument encodes a thread under groups/{gid}/threads/{tid}.
func ThreadDocument(t models.Thread) Document {
	return Document{
		ID:   docID(t.ID),
		Path: ThreadPath(t.GroupID, t.ID),
		Data: map[string]any{
			FieldAuthorName: t.AuthorName,
			FieldAuthorID:   t.UserID,
			FieldContent:    t.Content,
			FieldLikeCount:  t.LikeCount,
			FieldReplyCount: t.ReplyCount,
			FieldLiked:      t.Liked,
			FieldCreatedAt:  t.CreatedAt,
			FieldUpdatedAt:  t.UpdatedAt,
		},
		UpdateTime: stamp(t.CreatedAt, t.UpdatedAt),
	}
}

// ThreadFromDocument decodes a thread. The group id comes from the path;
// counters default to zero when absent.
func ThreadFromDocument(doc Document) (models.Thread, error) {
	id, err := doc.DocID()
	if err != nil {
		return models.Thread{}, err
	}
	authorName, err := doc.RequireString(FieldAuthorName)
	if err != nil {
		return models.Thread{}, err
	}
	authorID, err := doc.RequireID(FieldAuthorID)
	if err != nil {
		return models.Thread{}, err
	}
	content, err := doc.RequireString(FieldContent)
	if err != nil {
		return models.Thread{}, err
	}
	created, err := doc.RequireTime(FieldCreatedAt)
	if err != nil {
		return models.Thread{}, err
	}
	var groupID uint
	if ref, err := ParsePath(doc.Path); err == nil {
		groupID = ref.GroupID
	}
	liked, _ := doc.Data[FieldLiked].(bool)
	return models.Thread{
		ID:         id,
		GroupID:    groupID,
		UserID:     authorID,
		AuthorName: authorName,
		Content:    content,
		LikeCount:  int(doc.OptionalInt(FieldLikeCount)),
		ReplyCount: int(doc.OptionalInt(FieldReplyCount)),
		Liked:      liked,
		CreatedAt:  created,
		UpdatedAt:  doc.OptionalTime(FieldUpdatedAt),
	}, nil
}

// ReplyDocument encodes a reply; gid is needed to build its path.
func ReplyDocument(gid uint, r models.Reply) Document {
	return Document{
		ID:   docID(r.ID),
		Path: RepliesPath(gid, r.ThreadID) + "/" + docID(r.ID),
		Data: map[string]any{
			FieldUsername:  r.Username,
			FieldAuthorID:  r.UserID,
			FieldContent:   r.Content,
			FieldCreatedAt: r.CreatedAt,
		},
		UpdateTime: r.CreatedAt,
	}
}

// ReplyFromDocument decodes a reply. Username, author, content and created_at are required.
func ReplyFromDocument(doc Document) (models.Reply, error) {
	id, err := doc.DocID()
	if err != nil {
		return models.Reply{}, err
	}
	username, err := doc.RequireString(FieldUsername)
	if err != nil {
		return models.Reply{}, err
	}
	authorID, err := doc.RequireID(FieldAuthorID)
	if err != nil {
		return models.Reply{}, err
	}
	content, err := doc.RequireString(FieldContent)
	if err != nil {
		return models.Reply{}, err
	}
	created, err := doc.RequireTime(FieldCreatedAt)
	if err != nil {
		return models.Reply{}, err
	}
	return models.Reply{
		ID:        id,
		ThreadID:  threadIDFromPath(doc.Path),
		UserID:    authorID,
		Username:  username,
		Content:   content,
		CreatedAt: created,
	}, nil
}

// LikeDocument encodes a like; gid is needed to build its path.
func LikeDocument(gid uint, l models.Like) Document {
	return Document{
		ID:   docID(l.ID),
		Path: LikesPath(gid, l.ThreadID) + "/" + docID(l.ID),
		Data: map[string]any{
			FieldUserID:    l.UserID,
			FieldCreatedAt: l.CreatedAt,
		},
		UpdateTime: l.CreatedAt,
	}
}

// LikeFromDocument decodes a like. User and created_at are required.
func LikeFromDocument(doc Document) (models.Like, error) {
	id, err := doc.DocID()
	if err != nil {
		return models.Like{}, err
	}
	userID, err := doc.RequireID(FieldUserID)
	if err != nil {
		return models.Like{}, err
	}
	created, err := doc.RequireTime(FieldCreatedAt)
	if err != nil {
		return models.Like{}, err
	}
	return models.Like{
		ID:        id,
		ThreadID:  threadIDFromPath(doc.Path),
		UserID:    userID,
		CreatedAt: created,
	}, nil
}

// threadIDFromPath reads {tid} from groups/{gid}/threads/{tid}/<sub>/{id}.
func threadIDFromPath(p string) uint {
	segs := splitPath(p)
	if len(segs) < 4 {
		return 0
	}
	n, err := strconv.ParseUint(segs[3], 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}
