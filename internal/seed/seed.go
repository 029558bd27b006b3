// Package seed fills a database with demo data for development and tests.
package seed

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bookclub/internal/models"
	"bookclub/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

// Options configures the seeder.
type Options struct {
	NumUsers         int
	PostsPerUser     int
	RepliesPerThread int
	// ExtraGroups adds generated clubs on top of the starter fixture.
	ExtraGroups int
	ShouldClean bool
	// SkipBcrypt stores the plain demo password. Tests only.
	SkipBcrypt bool
	// RandSeed makes the generated content repeatable. Zero is random.
	RandSeed int64
	// Groups overrides the embedded starter fixture.
	Groups []StarterGroup
}

// Summary reports what was created.
type Summary struct {
	Users   int
	Groups  int
	Threads int
	Replies int
	Likes   int
	Posts   int
}

type seeder struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	opts  Options
	sum   Summary
}

// Seed populates db. Every seeded club is owned by the first user and joined
// by roughly half of the others.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	if opts.NumUsers < 1 {
		opts.NumUsers = 1
	}
	groups := opts.Groups
	if groups == nil {
		var err error
		if groups, err = DefaultStarterGroups(); err != nil {
			return nil, err
		}
	}

	s := &seeder{db: db.WithContext(ctx), faker: gofakeit.New(opts.RandSeed), opts: opts}
	log.Printf("seeding %d users, %d starter groups", opts.NumUsers, len(groups))

	if opts.ShouldClean {
		if err := clearData(s.db); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	users, err := s.createUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}

	for i := 0; i < opts.ExtraGroups; i++ {
		groups = append(groups, s.generatedGroup())
	}
	for _, g := range groups {
		if err := s.createGroup(users, g); err != nil {
			return nil, fmt.Errorf("failed to create group %q: %w", g.Title, err)
		}
	}

	if err := s.createPosts(users); err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}

	log.Printf("seeding done: %+v", s.sum)
	return &s.sum, nil
}

// clearData removes every row, children first.
func clearData(db *gorm.DB) error {
	all := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []interface{}{
		&models.Like{}, &models.Reply{}, &models.Thread{},
		&models.GroupMembership{}, &models.Group{}, &models.Post{}, &models.User{},
	} {
		if err := all.Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) password() (string, error) {
	if s.opts.SkipBcrypt {
		return DemoPassword, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *seeder) createUsers() ([]models.User, error) {
	password, err := s.password()
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, s.opts.NumUsers)
	for i := 0; i < s.opts.NumUsers; i++ {
		username := s.username(i)
		user := models.User{
			Username:  username,
			Email:     username + "@example.com",
			Password:  password,
			Bio:       s.faker.Sentence(8),
			AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	s.sum.Users = len(users)
	return users, nil
}

// username returns a valid, unique handle. The first account is always
// "reader" so there is a known login.
func (s *seeder) username(i int) string {
	if i == 0 {
		return "reader"
	}
	base := strings.ToLower(s.faker.Username())
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base)
	if len(base) > 24 {
		base = base[:24]
	}
	name := fmt.Sprintf("%s%d", base, i)
	if validation.ValidateUsername(name) != nil {
		name = fmt.Sprintf("reader%d", i)
	}
	return name
}

func (s *seeder) generatedGroup() StarterGroup {
	answer := s.faker.Word()
	return StarterGroup{
		Title:       s.faker.BookTitle(),
		Author:      s.faker.BookAuthor(),
		Description: s.faker.Sentence(12),
		Question:    "Which word is the password?",
		Answer:      answer,
		Threads:     []string{s.faker.Question(), s.faker.Question()},
	}
}

func (s *seeder) createGroup(users []models.User, def StarterGroup) error {
	owner := users[0]
	return s.db.Transaction(func(tx *gorm.DB) error {
		group := models.Group{
			Title:              strings.TrimSpace(def.Title),
			Author:             strings.TrimSpace(def.Author),
			Description:        def.Description,
			CoverURL:           fmt.Sprintf("https://picsum.photos/seed/%s/600/900", s.faker.UUID()),
			OwnerID:            owner.ID,
			ModerationQuestion: def.Question,
			ModerationAnswer:   def.Answer,
		}
		if err := tx.Create(&group).Error; err != nil {
			return err
		}

		members := []models.User{owner}
		rows := []models.GroupMembership{{GroupID: group.ID, UserID: owner.ID, Role: models.GroupRoleOwner}}
		for _, u := range users[1:] {
			if !s.faker.Bool() {
				continue
			}
			members = append(members, u)
			rows = append(rows, models.GroupMembership{GroupID: group.ID, UserID: u.ID, Role: models.GroupRoleMember})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}

		for _, content := range def.Threads {
			if err := s.createThread(tx, group, members, content); err != nil {
				return err
			}
		}
		s.sum.Groups++
		return nil
	})
}

// createThread writes a thread with replies and likes from members. The
// stored counters match the rows written.
func (s *seeder) createThread(tx *gorm.DB, group models.Group, members []models.User, content string) error {
	author := members[s.faker.Number(0, len(members)-1)]
	thread := models.Thread{
		GroupID:    group.ID,
		UserID:     author.ID,
		AuthorName: author.Username,
		Content:    content,
	}
	if err := tx.Create(&thread).Error; err != nil {
		return err
	}

	replies := 0
	for i := 0; i < s.opts.RepliesPerThread; i++ {
		u := members[s.faker.Number(0, len(members)-1)]
		reply := models.Reply{ThreadID: thread.ID, UserID: u.ID, Username: u.Username, Content: s.faker.Sentence(10)}
		if err := tx.Create(&reply).Error; err != nil {
			return err
		}
		replies++
	}

	likes := 0
	for _, u := range members {
		if !s.faker.Bool() {
			continue
		}
		if err := tx.Create(&models.Like{ThreadID: thread.ID, UserID: u.ID}).Error; err != nil {
			return err
		}
		likes++
	}

	s.sum.Threads++
	s.sum.Replies += replies
	s.sum.Likes += likes
	return tx.Model(&thread).UpdateColumns(map[string]interface{}{
		"like_count":  likes,
		"reply_count": replies,
	}).Error
}

func (s *seeder) createPosts(users []models.User) error {
	if s.opts.PostsPerUser <= 0 {
		return nil
	}
	posts := make([]models.Post, 0, len(users)*s.opts.PostsPerUser)
	for _, u := range users {
		for i := 0; i < s.opts.PostsPerUser; i++ {
			posts = append(posts, models.Post{
				UserID:     u.ID,
				AuthorName: u.Username,
				Title:      strings.TrimSuffix(s.faker.Sentence(5), "."),
				Body:       s.faker.Paragraph(1, 3, 12, "\n"),
			})
		}
	}
	if err := s.db.CreateInBatches(&posts, 100).Error; err != nil {
		return err
	}
	s.sum.Posts = len(posts)
	return nil
}
