package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"potential/internal/models"
	"potential/internal/notifications"
	"potential/internal/repository"

	"gorm.io/gorm"
)

type ProgramService struct {
	programRepo repository.ProgramRepository
	events      notifications.EventSink
}

type ProgramInput struct {
	Title        string
	Organization string
	Description  string
	ApplyURL     string
	OpensAt      time.Time
	ClosesAt     time.Time
}

func NewProgramService(programRepo repository.ProgramRepository, events notifications.EventSink) *ProgramService {
	return &ProgramService{programRepo: programRepo, events: events}
}

func (s *ProgramService) validate(in ProgramInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return models.NewValidationError("Title is required")
	}
	if strings.TrimSpace(in.Organization) == "" {
		return models.NewValidationError("Organization is required")
	}
	if in.ApplyURL != "" {
		if _, err := url.ParseRequestURI(in.ApplyURL); err != nil {
			return models.NewValidationError("apply_url must be a valid URL")
		}
	}
	if !in.OpensAt.IsZero() && !in.ClosesAt.IsZero() && in.ClosesAt.Before(in.OpensAt) {
		return models.NewValidationError("closes_at must be after opens_at")
	}
	return nil
}

// CreateProgram creates a draft program. Admin-only, enforced by the route.
func (s *ProgramService) CreateProgram(ctx context.Context, in ProgramInput) (*models.SupportProgram, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}
	program := &models.SupportProgram{
		Title:        strings.TrimSpace(in.Title),
		Organization: strings.TrimSpace(in.Organization),
		Description:  in.Description,
		ApplyURL:     in.ApplyURL,
		OpensAt:      in.OpensAt,
		ClosesAt:     in.ClosesAt,
		Status:       models.StatusDraft,
	}
	if err := s.programRepo.Create(ctx, program); err != nil {
		return nil, err
	}
	return program, nil
}

func (s *ProgramService) GetProgram(ctx context.Context, id uint) (*models.SupportProgram, error) {
	program, err := s.programRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Support program", id)
		}
		return nil, err
	}
	return program, nil
}

func (s *ProgramService) ListPublished(ctx context.Context, limit, offset int) ([]*models.SupportProgram, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.programRepo.ListPublished(ctx, limit, offset)
}

func (s *ProgramService) ListAll(ctx context.Context, limit, offset int) ([]*models.SupportProgram, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.programRepo.ListAll(ctx, limit, offset)
}

// UpdateProgram edits a draft's fields. Published programs are immutable
// except for archival.
func (s *ProgramService) UpdateProgram(ctx context.Context, id uint, in ProgramInput) (*models.SupportProgram, error) {
	program, err := s.GetProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	if program.Status != models.StatusDraft {
		return nil, models.NewConflictError("Only draft programs can be edited")
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	program.Title = strings.TrimSpace(in.Title)
	program.Organization = strings.TrimSpace(in.Organization)
	program.Description = in.Description
	program.ApplyURL = in.ApplyURL
	program.OpensAt = in.OpensAt
	program.ClosesAt = in.ClosesAt

	if err := s.programRepo.Update(ctx, program); err != nil {
		return nil, err
	}
	return program, nil
}

// SetStatus moves a program along draft→published→archived. Invalid
// transitions are rejected.
func (s *ProgramService) SetStatus(ctx context.Context, id uint, status string) (*models.SupportProgram, error) {
	program, err := s.GetProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.ValidStatusTransition(program.Status, status) {
		return nil, models.NewConflictError("Invalid status transition")
	}

	if err := s.programRepo.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	program.Status = status
	program.UpdatedAt = time.Now()

	if status == models.StatusArchived {
		// Archived programs disappear from listings; the row travels in old.
		if ev, err := notifications.NewChangeEvent(
			notifications.EventDelete, notifications.TablePrograms,
			nil, program, "", program.Version()); err == nil {
			notifications.PublishFeed(ctx, s.events, ev)
		}
	} else {
		if ev, err := notifications.NewChangeEvent(
			notifications.EventUpdate, notifications.TablePrograms,
			program, nil, "", program.Version()); err == nil {
			notifications.PublishFeed(ctx, s.events, ev)
		}
	}
	return program, nil
}
