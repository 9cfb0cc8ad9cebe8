package service

import (
	"context"
	"errors"
	"strings"

	"potential/internal/models"
	"potential/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	userRepo repository.UserRepository
	pusher   notificationPusher
}

type RegisterInput struct {
	Email       string
	Password    string
	Name        string
	CompanyName string
	Locale      string
}

type UpdateProfileInput struct {
	UserID      uint
	Name        string
	CompanyName string
	Bio         string
	AvatarURL   string
	Locale      string
}

func NewUserService(userRepo repository.UserRepository, pusher notificationPusher) *UserService {
	return &UserService{userRepo: userRepo, pusher: pusher}
}

// Register creates a new pending member. The account cannot post until an
// admin approves it.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, models.NewValidationError("A valid email is required")
	}
	if len(in.Password) < 8 {
		return nil, models.NewValidationError("Password must be at least 8 characters")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, models.NewValidationError("Name is required")
	}
	locale := in.Locale
	switch locale {
	case "":
		locale = models.LocaleKorean
	case models.LocaleKorean, models.LocaleEnglish:
	default:
		return nil, models.NewValidationError("Unsupported locale")
	}

	if existing, err := s.userRepo.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, models.NewConflictError("Email is already registered")
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(in.Name),
		CompanyName:  strings.TrimSpace(in.CompanyName),
		Role:         models.RoleMember,
		Approval:     models.ApprovalPending,
		Locale:       locale,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials and returns the user on success.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewUnauthorizedError("Invalid email or password")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	if user.Approval == models.ApprovalRejected {
		return nil, models.NewForbiddenError("Membership application was rejected")
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", in.UserID)
		}
		return nil, err
	}

	if in.Name != "" {
		user.Name = strings.TrimSpace(in.Name)
	}
	if in.CompanyName != "" {
		user.CompanyName = strings.TrimSpace(in.CompanyName)
	}
	if in.Bio != "" {
		user.Bio = in.Bio
	}
	if in.AvatarURL != "" {
		user.AvatarURL = in.AvatarURL
	}
	if in.Locale != "" {
		if in.Locale != models.LocaleKorean && in.Locale != models.LocaleEnglish {
			return nil, models.NewValidationError("Unsupported locale")
		}
		user.Locale = in.Locale
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) ListPendingMembers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.userRepo.ListByApproval(ctx, models.ApprovalPending, limit, offset)
}

// SetApproval approves or rejects a pending member. Approval notifies the
// member.
func (s *UserService) SetApproval(ctx context.Context, userID uint, approval string) (*models.User, error) {
	if approval != models.ApprovalApproved && approval != models.ApprovalRejected {
		return nil, models.NewValidationError("approval must be approved or rejected")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", userID)
		}
		return nil, err
	}
	if user.Approval == approval {
		return user, nil
	}

	if err := s.userRepo.SetApproval(ctx, userID, approval); err != nil {
		return nil, err
	}
	user.Approval = approval

	if approval == models.ApprovalApproved && s.pusher != nil {
		_ = s.pusher.Push(ctx, &models.Notification{
			UserID: userID,
			Type:   models.NotificationMemberApproved,
			Title:  "member_approved",
		})
	}
	return user, nil
}

// SetRole changes a user's role. Admin-only, enforced by the route.
func (s *UserService) SetRole(ctx context.Context, userID uint, role string) (*models.User, error) {
	switch role {
	case models.RoleMember, models.RoleExpert, models.RoleAdmin:
	default:
		return nil, models.NewValidationError("Invalid role")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", userID)
		}
		return nil, err
	}

	if err := s.userRepo.SetRole(ctx, userID, role); err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}
