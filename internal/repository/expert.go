package repository

import (
	"context"

	"potential/internal/cache"
	"potential/internal/models"

	"gorm.io/gorm"
)

// ExpertRepository defines the interface for expert profile data operations
type ExpertRepository interface {
	Create(ctx context.Context, profile *models.ExpertProfile) error
	GetByID(ctx context.Context, id uint) (*models.ExpertProfile, error)
	GetByUserID(ctx context.Context, userID uint) (*models.ExpertProfile, error)
	ListPublished(ctx context.Context, limit, offset int) ([]*models.ExpertProfile, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.ExpertProfile, error)
	Update(ctx context.Context, profile *models.ExpertProfile) error
	SetStatus(ctx context.Context, id uint, status string) error
}

type expertRepository struct {
	db *gorm.DB
}

// NewExpertRepository creates a new expert profile repository
func NewExpertRepository(db *gorm.DB) ExpertRepository {
	return &expertRepository{db: db}
}

func (r *expertRepository) Create(ctx context.Context, profile *models.ExpertProfile) error {
	err := r.db.WithContext(ctx).Create(profile).Error
	if err == nil {
		cache.InvalidateExperts(ctx)
	}
	return err
}

func (r *expertRepository) GetByID(ctx context.Context, id uint) (*models.ExpertProfile, error) {
	var profile models.ExpertProfile
	if err := r.db.WithContext(ctx).Preload("User").First(&profile, id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *expertRepository) GetByUserID(ctx context.Context, userID uint) (*models.ExpertProfile, error) {
	var profile models.ExpertProfile
	if err := r.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *expertRepository) ListPublished(ctx context.Context, limit, offset int) ([]*models.ExpertProfile, error) {
	var profiles []*models.ExpertProfile
	fetch := func() error {
		return r.db.WithContext(ctx).
			Preload("User").
			Where("status = ?", models.StatusPublished).
			Order("created_at DESC").
			Limit(limit).
			Offset(offset).
			Find(&profiles).Error
	}
	if offset == 0 {
		err := cache.Aside(ctx, cache.ExpertsListKey, &profiles, cache.CatalogTTL, fetch)
		return profiles, err
	}
	return profiles, fetch()
}

func (r *expertRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.ExpertProfile, error) {
	var profiles []*models.ExpertProfile
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&profiles).Error
	return profiles, err
}

func (r *expertRepository) Update(ctx context.Context, profile *models.ExpertProfile) error {
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return err
	}
	cache.InvalidateExperts(ctx)
	return nil
}

func (r *expertRepository) SetStatus(ctx context.Context, id uint, status string) error {
	err := r.db.WithContext(ctx).
		Model(&models.ExpertProfile{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err == nil {
		cache.InvalidateExperts(ctx)
	}
	return err
}
