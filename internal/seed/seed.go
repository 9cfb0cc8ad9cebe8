// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"potential/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
}

// The shared password for every seeded account.
const seedPassword = "password123"

var specialtyPool = []string{
	"fundraising", "product", "marketing", "legal", "accounting",
	"hiring", "growth", "manufacturing", "export", "government grants",
}

var organizationPool = []string{
	"KISED", "Seoul Business Agency", "TIPS", "Korea Venture Investment Corp",
	"Ministry of SMEs and Startups", "Creative Economy Innovation Center",
}

// Seeder populates the database with demo data.
type Seeder struct {
	db   *gorm.DB
	rand *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:   db,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes all seeded rows. Order matters because of foreign keys.
func (s *Seeder) ClearAll() error {
	log.Println("Clearing existing data...")
	tables := []string{
		"notifications", "collaboration_requests", "bookmarks", "likes",
		"comments", "posts", "expert_profiles", "support_programs", "users",
	}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// Seed populates the database with a coherent community: an admin, a mix
// of approved and pending members, a handful of experts with profiles,
// posts with comments and likes, a program catalog and collaboration
// requests.
func (s *Seeder) Seed(opts Options) error {
	users, err := s.seedUsers(opts.NumUsers)
	if err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}
	log.Printf("created %d users", len(users))

	posts, err := s.seedPosts(users, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("seeding posts: %w", err)
	}
	log.Printf("created %d posts", len(posts))

	if err := s.seedEngagement(users, posts); err != nil {
		return fmt.Errorf("seeding engagement: %w", err)
	}

	if err := s.seedPrograms(); err != nil {
		return fmt.Errorf("seeding programs: %w", err)
	}

	if err := s.seedExperts(users); err != nil {
		return fmt.Errorf("seeding experts: %w", err)
	}

	return nil
}

func (s *Seeder) seedUsers(n int) ([]*models.User, error) {
	if n < 5 {
		n = 5
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, n)

	admin := &models.User{
		Email:        "admin@potential.dev",
		PasswordHash: string(hash),
		Name:         "Admin",
		Role:         models.RoleAdmin,
		Approval:     models.ApprovalApproved,
		Locale:       models.LocaleKorean,
	}
	if err := s.db.Create(admin).Error; err != nil {
		return nil, err
	}
	users = append(users, admin)

	for i := 1; i < n; i++ {
		user := &models.User{
			Email:        fmt.Sprintf("member%d@%s", i, gofakeit.DomainName()),
			PasswordHash: string(hash),
			Name:         gofakeit.Name(),
			CompanyName:  gofakeit.Company(),
			Bio:          gofakeit.Sentence(8),
			Role:         models.RoleMember,
			Approval:     models.ApprovalApproved,
			Locale:       models.LocaleKorean,
		}
		// A few experts, a few still pending, the occasional English UI.
		switch {
		case i%7 == 0:
			user.Role = models.RoleExpert
		case i%5 == 0:
			user.Approval = models.ApprovalPending
		}
		if i%4 == 0 {
			user.Locale = models.LocaleEnglish
		}
		if err := s.db.Create(user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, nil
}

func (s *Seeder) seedPosts(users []*models.User, n int) ([]*models.Post, error) {
	authors := approvedOf(users)
	posts := make([]*models.Post, 0, n)

	for i := 0; i < n; i++ {
		author := authors[s.rand.Intn(len(authors))]
		post := &models.Post{
			AuthorID:    author.ID,
			Content:     gofakeit.Paragraph(1, 3, 8, "\n"),
			ClientToken: uuid.New().String(),
			CreatedAt:   s.pastTime(60),
		}
		if s.rand.Intn(4) == 0 {
			post.MediaURLs = []string{
				fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID()),
			}
		}
		if i == 0 {
			post.IsPinned = true
		}
		if err := s.db.Create(post).Error; err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	return posts, nil
}

func (s *Seeder) seedEngagement(users []*models.User, posts []*models.Post) error {
	members := approvedOf(users)

	for _, post := range posts {
		// Comments, with the occasional one-level reply.
		numComments := s.rand.Intn(5)
		var parent *models.Comment
		for i := 0; i < numComments; i++ {
			author := members[s.rand.Intn(len(members))]
			comment := &models.Comment{
				PostID:      post.ID,
				AuthorID:    author.ID,
				Content:     gofakeit.Sentence(10),
				ClientToken: uuid.New().String(),
			}
			if parent != nil && s.rand.Intn(3) == 0 {
				comment.ParentID = &parent.ID
			}
			if err := s.db.Create(comment).Error; err != nil {
				return err
			}
			if comment.ParentID == nil {
				parent = comment
			}
		}

		// Likes from a random subset of members.
		for _, member := range members {
			if s.rand.Intn(3) != 0 {
				continue
			}
			like := &models.Like{
				UserID:       member.ID,
				LikeableType: models.LikeablePost,
				LikeableID:   post.ID,
			}
			if err := s.db.Create(like).Error; err != nil {
				return err
			}
		}

		// A few bookmarks.
		if s.rand.Intn(4) == 0 {
			member := members[s.rand.Intn(len(members))]
			bookmark := &models.Bookmark{
				UserID:           member.ID,
				BookmarkableType: models.BookmarkablePost,
				BookmarkableID:   post.ID,
			}
			if err := s.db.Create(bookmark).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *Seeder) seedPrograms() error {
	for i := 0; i < 8; i++ {
		opens := s.pastTime(20)
		program := &models.SupportProgram{
			Title:        gofakeit.Sentence(4),
			Organization: organizationPool[s.rand.Intn(len(organizationPool))],
			Description:  gofakeit.Paragraph(1, 2, 10, "\n"),
			ApplyURL:     gofakeit.URL(),
			OpensAt:      opens,
			ClosesAt:     opens.Add(time.Duration(30+s.rand.Intn(60)) * 24 * time.Hour),
			Status:       models.StatusPublished,
		}
		if i >= 6 {
			program.Status = models.StatusDraft
		}
		if err := s.db.Create(program).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedExperts(users []*models.User) error {
	var requester *models.User
	for _, user := range users {
		if user.Role == models.RoleMember && user.Approval == models.ApprovalApproved {
			requester = user
			break
		}
	}

	for _, user := range users {
		if user.Role != models.RoleExpert {
			continue
		}

		specialties := []string{
			specialtyPool[s.rand.Intn(len(specialtyPool))],
			specialtyPool[s.rand.Intn(len(specialtyPool))],
		}
		profile := &models.ExpertProfile{
			UserID:      user.ID,
			Headline:    gofakeit.JobTitle(),
			Specialties: specialties,
			Career:      gofakeit.Paragraph(1, 2, 8, "\n"),
			Status:      models.StatusPublished,
		}
		if err := s.db.Create(profile).Error; err != nil {
			return err
		}

		if requester == nil || s.rand.Intn(2) != 0 {
			continue
		}
		request := &models.CollaborationRequest{
			RequesterID: requester.ID,
			ExpertID:    profile.ID,
			Message:     gofakeit.Sentence(12),
			Status:      models.CollabPending,
		}
		if err := s.db.Create(request).Error; err != nil {
			return err
		}
	}

	return nil
}

// pastTime returns a time up to maxDays in the past.
func (s *Seeder) pastTime(maxDays int) time.Time {
	daysBack := s.rand.Intn(maxDays)
	hoursBack := s.rand.Intn(24)
	return time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour)
}

func approvedOf(users []*models.User) []*models.User {
	approved := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u.Approval == models.ApprovalApproved {
			approved = append(approved, u)
		}
	}
	return approved
}
