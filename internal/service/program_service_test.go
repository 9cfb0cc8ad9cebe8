package service

import (
	"context"
	"testing"
	"time"

	"potential/internal/models"
	"potential/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// programRepoStub is a stub for repository.ProgramRepository.
type programRepoStub struct {
	createFn        func(context.Context, *models.SupportProgram) error
	getByIDFn       func(context.Context, uint) (*models.SupportProgram, error)
	listPublishedFn func(context.Context, int, int) ([]*models.SupportProgram, error)
	listAllFn       func(context.Context, int, int) ([]*models.SupportProgram, error)
	updateFn        func(context.Context, *models.SupportProgram) error
	setStatusFn     func(context.Context, uint, string) error
}

func (s *programRepoStub) Create(ctx context.Context, program *models.SupportProgram) error {
	return s.createFn(ctx, program)
}
func (s *programRepoStub) GetByID(ctx context.Context, id uint) (*models.SupportProgram, error) {
	return s.getByIDFn(ctx, id)
}
func (s *programRepoStub) ListPublished(ctx context.Context, limit, offset int) ([]*models.SupportProgram, error) {
	return s.listPublishedFn(ctx, limit, offset)
}
func (s *programRepoStub) ListAll(ctx context.Context, limit, offset int) ([]*models.SupportProgram, error) {
	return s.listAllFn(ctx, limit, offset)
}
func (s *programRepoStub) Update(ctx context.Context, program *models.SupportProgram) error {
	return s.updateFn(ctx, program)
}
func (s *programRepoStub) SetStatus(ctx context.Context, id uint, status string) error {
	return s.setStatusFn(ctx, id, status)
}

func noopProgramRepo() *programRepoStub {
	return &programRepoStub{
		createFn: func(_ context.Context, p *models.SupportProgram) error { p.ID = 1; return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.SupportProgram, error) {
			return &models.SupportProgram{ID: id, Title: "Seed Grant", Organization: "KISED", Status: models.StatusDraft}, nil
		},
		listPublishedFn: func(_ context.Context, _, _ int) ([]*models.SupportProgram, error) { return nil, nil },
		listAllFn:       func(_ context.Context, _, _ int) ([]*models.SupportProgram, error) { return nil, nil },
		updateFn:        func(_ context.Context, _ *models.SupportProgram) error { return nil },
		setStatusFn:     func(_ context.Context, _ uint, _ string) error { return nil },
	}
}

func TestProgramService_CreateProgram_Validation(t *testing.T) {
	svc := NewProgramService(noopProgramRepo(), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   ProgramInput
	}{
		{"missing title", ProgramInput{Organization: "KISED"}},
		{"missing organization", ProgramInput{Title: "Seed Grant"}},
		{"bad apply url", ProgramInput{Title: "Seed Grant", Organization: "KISED", ApplyURL: "::::"}},
		{"closes before opens", ProgramInput{
			Title: "Seed Grant", Organization: "KISED",
			OpensAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			ClosesAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProgram(ctx, tt.in)
			assertAppErrorCode(t, err, "VALIDATION_ERROR")
		})
	}
}

func TestProgramService_StatusTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("draft to published emits an update", func(t *testing.T) {
		events := newEventSinkStub()
		svc := NewProgramService(noopProgramRepo(), events)

		program, err := svc.SetStatus(ctx, 1, models.StatusPublished)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPublished, program.Status)

		feed := events.feedEvents()
		require.Len(t, feed, 1)
		assert.Equal(t, notifications.EventUpdate, feed[0].EventType)
		assert.Equal(t, notifications.TablePrograms, feed[0].Table)
	})

	t.Run("published to archived emits a delete", func(t *testing.T) {
		events := newEventSinkStub()
		programRepo := noopProgramRepo()
		programRepo.getByIDFn = func(_ context.Context, id uint) (*models.SupportProgram, error) {
			return &models.SupportProgram{ID: id, Status: models.StatusPublished}, nil
		}
		svc := NewProgramService(programRepo, events)

		program, err := svc.SetStatus(ctx, 1, models.StatusArchived)
		require.NoError(t, err)
		assert.Equal(t, models.StatusArchived, program.Status)

		feed := events.feedEvents()
		require.Len(t, feed, 1)
		assert.Equal(t, notifications.EventDelete, feed[0].EventType)
		assert.Empty(t, feed[0].New)
		assert.NotEmpty(t, feed[0].Old, "removal events carry the row in old")
	})

	t.Run("invalid transitions conflict", func(t *testing.T) {
		svc := NewProgramService(noopProgramRepo(), nil)
		_, err := svc.SetStatus(ctx, 1, models.StatusArchived)
		assertAppErrorCode(t, err, "CONFLICT")

		archivedRepo := noopProgramRepo()
		archivedRepo.getByIDFn = func(_ context.Context, id uint) (*models.SupportProgram, error) {
			return &models.SupportProgram{ID: id, Status: models.StatusArchived}, nil
		}
		svc = NewProgramService(archivedRepo, nil)
		_, err = svc.SetStatus(ctx, 1, models.StatusPublished)
		assertAppErrorCode(t, err, "CONFLICT")
	})
}

func TestProgramService_UpdateProgram_OnlyDrafts(t *testing.T) {
	programRepo := noopProgramRepo()
	programRepo.getByIDFn = func(_ context.Context, id uint) (*models.SupportProgram, error) {
		return &models.SupportProgram{ID: id, Status: models.StatusPublished}, nil
	}
	svc := NewProgramService(programRepo, nil)

	_, err := svc.UpdateProgram(context.Background(), 1, ProgramInput{Title: "New", Organization: "KISED"})
	assertAppErrorCode(t, err, "CONFLICT")
}
