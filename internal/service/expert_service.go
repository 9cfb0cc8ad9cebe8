package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"potential/internal/models"
	"potential/internal/notifications"
	"potential/internal/repository"

	"gorm.io/gorm"
)

type ExpertService struct {
	expertRepo repository.ExpertRepository
	collabRepo repository.CollaborationRepository
	userRepo   repository.UserRepository
	pusher     notificationPusher
	events     notifications.EventSink
}

type ExpertProfileInput struct {
	UserID      uint
	Headline    string
	Specialties []string
	Career      string
}

func NewExpertService(
	expertRepo repository.ExpertRepository,
	collabRepo repository.CollaborationRepository,
	userRepo repository.UserRepository,
	pusher notificationPusher,
	events notifications.EventSink,
) *ExpertService {
	return &ExpertService{
		expertRepo: expertRepo,
		collabRepo: collabRepo,
		userRepo:   userRepo,
		pusher:     pusher,
		events:     events,
	}
}

// UpsertProfile creates or edits the caller's expert profile. Only users
// holding the expert role may have one; published profiles return to draft
// review after an edit.
func (s *ExpertService) UpsertProfile(ctx context.Context, in ExpertProfileInput) (*models.ExpertProfile, error) {
	if strings.TrimSpace(in.Headline) == "" {
		return nil, models.NewValidationError("Headline is required")
	}
	if len(in.Specialties) == 0 {
		return nil, models.NewValidationError("At least one specialty is required")
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", in.UserID)
		}
		return nil, err
	}
	if user.Role != models.RoleExpert && user.Role != models.RoleAdmin {
		return nil, models.NewForbiddenError("Only experts can maintain a profile")
	}

	profile, err := s.expertRepo.GetByUserID(ctx, in.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		profile = &models.ExpertProfile{
			UserID:      in.UserID,
			Headline:    strings.TrimSpace(in.Headline),
			Specialties: in.Specialties,
			Career:      in.Career,
			Status:      models.StatusDraft,
		}
		if err := s.expertRepo.Create(ctx, profile); err != nil {
			return nil, err
		}
		return profile, nil
	}

	profile.Headline = strings.TrimSpace(in.Headline)
	profile.Specialties = in.Specialties
	profile.Career = in.Career
	profile.Status = models.StatusDraft

	if err := s.expertRepo.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *ExpertService) GetProfile(ctx context.Context, id uint) (*models.ExpertProfile, error) {
	profile, err := s.expertRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Expert profile", id)
		}
		return nil, err
	}
	return profile, nil
}

func (s *ExpertService) GetProfileByUser(ctx context.Context, userID uint) (*models.ExpertProfile, error) {
	profile, err := s.expertRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Expert profile", userID)
		}
		return nil, err
	}
	return profile, nil
}

func (s *ExpertService) ListPublished(ctx context.Context, limit, offset int) ([]*models.ExpertProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.expertRepo.ListPublished(ctx, limit, offset)
}

func (s *ExpertService) ListAll(ctx context.Context, limit, offset int) ([]*models.ExpertProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.expertRepo.ListAll(ctx, limit, offset)
}

// SetStatus moves a profile along draft→published→archived. Admin-only,
// enforced by the route.
func (s *ExpertService) SetStatus(ctx context.Context, id uint, status string) (*models.ExpertProfile, error) {
	profile, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.ValidStatusTransition(profile.Status, status) {
		return nil, models.NewConflictError("Invalid status transition")
	}

	if err := s.expertRepo.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	profile.Status = status
	profile.UpdatedAt = time.Now()

	if status == models.StatusArchived {
		// Archived profiles disappear from listings; the row travels in old.
		if ev, err := notifications.NewChangeEvent(
			notifications.EventDelete, notifications.TableExperts,
			nil, profile, "", profile.Version()); err == nil {
			notifications.PublishFeed(ctx, s.events, ev)
		}
	} else {
		if ev, err := notifications.NewChangeEvent(
			notifications.EventUpdate, notifications.TableExperts,
			profile, nil, "", profile.Version()); err == nil {
			notifications.PublishFeed(ctx, s.events, ev)
		}
	}
	return profile, nil
}

// RequestCollaboration files a member's request to work with an expert and
// notifies the expert. A requester may hold one pending request per expert.
func (s *ExpertService) RequestCollaboration(ctx context.Context, requesterID, expertID uint, message string) (*models.CollaborationRequest, error) {
	if strings.TrimSpace(message) == "" {
		return nil, models.NewValidationError("Message is required")
	}

	profile, err := s.GetProfile(ctx, expertID)
	if err != nil {
		return nil, err
	}
	if profile.Status != models.StatusPublished {
		return nil, models.NewNotFoundError("Expert profile", expertID)
	}
	if profile.UserID == requesterID {
		return nil, models.NewValidationError("You cannot request collaboration with yourself")
	}

	pending, err := s.collabRepo.HasPending(ctx, requesterID, expertID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, models.NewConflictError("A pending request for this expert already exists")
	}

	request := &models.CollaborationRequest{
		RequesterID: requesterID,
		ExpertID:    expertID,
		Message:     message,
		Status:      models.CollabPending,
	}
	if err := s.collabRepo.Create(ctx, request); err != nil {
		// A concurrent duplicate slipped past the HasPending check.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewConflictError("A pending request for this expert already exists")
		}
		return nil, err
	}

	if s.pusher != nil {
		_ = s.pusher.Push(ctx, &models.Notification{
			UserID:        profile.UserID,
			Type:          models.NotificationCollabRequested,
			Title:         "collab_requested",
			ReferenceType: "collaboration_request",
			ReferenceID:   request.ID,
		})
	}
	return request, nil
}

// AnswerCollaboration lets the expert who owns the profile accept or
// decline a pending request. The requester is notified either way.
func (s *ExpertService) AnswerCollaboration(ctx context.Context, expertUserID, requestID uint, accept bool) (*models.CollaborationRequest, error) {
	request, err := s.collabRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Collaboration request", requestID)
		}
		return nil, err
	}

	profile, err := s.GetProfile(ctx, request.ExpertID)
	if err != nil {
		return nil, err
	}
	if profile.UserID != expertUserID {
		return nil, models.NewForbiddenError("Only the requested expert can answer")
	}
	if request.Status != models.CollabPending {
		return nil, models.NewConflictError("Request has already been answered")
	}

	status := models.CollabDeclined
	if accept {
		status = models.CollabAccepted
	}
	if err := s.collabRepo.SetStatus(ctx, requestID, status); err != nil {
		return nil, err
	}
	request.Status = status

	if s.pusher != nil {
		_ = s.pusher.Push(ctx, &models.Notification{
			UserID:        request.RequesterID,
			Type:          models.NotificationCollabAnswered,
			Title:         "collab_answered",
			Body:          status,
			ReferenceType: "collaboration_request",
			ReferenceID:   request.ID,
		})
	}
	return request, nil
}

// ListCollaborationsForExpert returns requests filed against the caller's
// own profile.
func (s *ExpertService) ListCollaborationsForExpert(ctx context.Context, expertUserID uint, limit, offset int) ([]*models.CollaborationRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	profile, err := s.expertRepo.GetByUserID(ctx, expertUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Expert profile", expertUserID)
		}
		return nil, err
	}
	return s.collabRepo.ListByExpert(ctx, profile.ID, limit, offset)
}

func (s *ExpertService) ListCollaborationsForRequester(ctx context.Context, requesterID uint, limit, offset int) ([]*models.CollaborationRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.collabRepo.ListByRequester(ctx, requesterID, limit, offset)
}
