// Package seed fills a store with demo users, threads and comments. It is
// meant for development and testing only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/forum"
	"github.com/frcoutreach/outreachnet/internal/identity"
	"github.com/frcoutreach/outreachnet/internal/models"
	"github.com/frcoutreach/outreachnet/internal/session"
	"github.com/frcoutreach/outreachnet/pkg/logging"
)

// Options controls how much data is created.
type Options struct {
	Users             int
	ThreadsPerUser    int
	CommentsPerThread int
	// Password is shared by every seeded account.
	Password string
	// Seed makes runs reproducible. Zero picks a random seed.
	Seed int64
}

// Summary reports what was created.
type Summary struct {
	Users    []string `json:"users"`
	Threads  int      `json:"threads"`
	Comments int      `json:"comments"`
	Likes    int      `json:"likes"`
}

// Seeder creates accounts through the identity backend and content through
// the forum service, so seeded data passes the same validation as user
// input.
type Seeder struct {
	backend  identity.Backend
	profiles session.Profiles
	forum    *forum.Service
	logger   *zap.Logger
}

// New creates a seeder
func New(backend identity.Backend, profiles session.Profiles, svc *forum.Service) *Seeder {
	return &Seeder{
		backend:  backend,
		profiles: profiles,
		forum:    svc,
		logger:   logging.WithComponent("seed"),
	}
}

// Run creates the data described by opts.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.Password == "" {
		opts.Password = "outreach123"
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Int63()
	}
	gofakeit.Seed(opts.Seed)
	r := rand.New(rand.NewSource(opts.Seed))

	summary := Summary{Users: []string{}}
	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		email := fmt.Sprintf("%s.%d@example.org", strings.ToLower(gofakeit.LetterN(8)), i)
		name, err := s.forum.DisplayName(gofakeit.Name())
		if err != nil {
			return summary, err
		}
		_, user, err := session.RegisterAccount(ctx, s.backend, s.profiles, email, opts.Password, name)
		if err != nil {
			return summary, fmt.Errorf("register %s: %w", email, err)
		}
		photo := fmt.Sprintf("https://i.pravatar.cc/150?u=%s", user.UID)
		if user, err = s.forum.UpdateProfile(ctx, user, forum.ProfileInput{PhotoURL: &photo}); err != nil {
			return summary, fmt.Errorf("profile %s: %w", email, err)
		}
		users = append(users, user)
		summary.Users = append(summary.Users, email)
	}
	if len(users) == 0 {
		return summary, nil
	}

	categories := models.Categories()
	for _, author := range users {
		for i := 0; i < opts.ThreadsPerUser; i++ {
			threadID, err := s.forum.CreateThread(ctx, author, forum.ThreadInput{
				Title:    gofakeit.Sentence(5),
				Content:  gofakeit.Paragraph(1, 3, 8, "\n"),
				Category: categories[r.Intn(len(categories))],
				Tags:     []string{gofakeit.Word(), gofakeit.Word()},
			})
			if err != nil {
				return summary, fmt.Errorf("thread by %s: %w", author.UID, err)
			}
			summary.Threads++

			for j := 0; j < opts.CommentsPerThread; j++ {
				commenter := users[r.Intn(len(users))]
				commentID, err := s.forum.AddComment(ctx, commenter, forum.CommentInput{
					ThreadID: threadID,
					Content:  gofakeit.Sentence(8),
				})
				if err != nil {
					return summary, fmt.Errorf("comment on %s: %w", threadID, err)
				}
				summary.Comments++

				if r.Intn(2) == 0 {
					if _, err := s.forum.ToggleCommentLike(ctx, users[r.Intn(len(users))], commentID); err != nil {
						return summary, err
					}
					summary.Likes++
				}
			}

			if r.Intn(2) == 0 {
				if _, err := s.forum.ToggleThreadLike(ctx, users[r.Intn(len(users))], threadID); err != nil {
					return summary, err
				}
				summary.Likes++
			}
		}
	}

	s.logger.Info("Seed complete",
		zap.Int("users", len(summary.Users)),
		zap.Int("threads", summary.Threads),
		zap.Int("comments", summary.Comments))
	return summary, nil
}
