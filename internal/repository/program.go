package repository

import (
	"context"

	"potential/internal/cache"
	"potential/internal/models"

	"gorm.io/gorm"
)

// ProgramRepository defines the interface for support program data operations
type ProgramRepository interface {
	Create(ctx context.Context, program *models.SupportProgram) error
	GetByID(ctx context.Context, id uint) (*models.SupportProgram, error)
	ListPublished(ctx context.Context, limit, offset int) ([]*models.SupportProgram, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.SupportProgram, error)
	Update(ctx context.Context, program *models.SupportProgram) error
	SetStatus(ctx context.Context, id uint, status string) error
}

type programRepository struct {
	db *gorm.DB
}

// NewProgramRepository creates a new support program repository
func NewProgramRepository(db *gorm.DB) ProgramRepository {
	return &programRepository{db: db}
}

func (r *programRepository) Create(ctx context.Context, program *models.SupportProgram) error {
	err := r.db.WithContext(ctx).Create(program).Error
	if err == nil {
		cache.InvalidatePrograms(ctx)
	}
	return err
}

func (r *programRepository) GetByID(ctx context.Context, id uint) (*models.SupportProgram, error) {
	var program models.SupportProgram
	if err := r.db.WithContext(ctx).First(&program, id).Error; err != nil {
		return nil, err
	}
	return &program, nil
}

func (r *programRepository) ListPublished(ctx context.Context, limit, offset int) ([]*models.SupportProgram, error) {
	var programs []*models.SupportProgram
	fetch := func() error {
		return r.db.WithContext(ctx).
			Where("status = ?", models.StatusPublished).
			Order("closes_at ASC, created_at DESC").
			Limit(limit).
			Offset(offset).
			Find(&programs).Error
	}
	// Only the catalog's first page is shared enough to be worth caching.
	if offset == 0 {
		err := cache.Aside(ctx, cache.ProgramsListKey, &programs, cache.CatalogTTL, fetch)
		return programs, err
	}
	return programs, fetch()
}

func (r *programRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.SupportProgram, error) {
	var programs []*models.SupportProgram
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&programs).Error
	return programs, err
}

func (r *programRepository) Update(ctx context.Context, program *models.SupportProgram) error {
	if err := r.db.WithContext(ctx).Save(program).Error; err != nil {
		return err
	}
	cache.InvalidatePrograms(ctx)
	return nil
}

func (r *programRepository) SetStatus(ctx context.Context, id uint, status string) error {
	err := r.db.WithContext(ctx).
		Model(&models.SupportProgram{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err == nil {
		cache.InvalidatePrograms(ctx)
	}
	return err
}
