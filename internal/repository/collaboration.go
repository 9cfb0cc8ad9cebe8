package repository

import (
	"context"
	"errors"

	"potential/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrDuplicate reports an insert rejected by a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate row")

// isUniqueViolation unwraps to the postgres driver error and checks for
// unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CollaborationRepository defines the interface for collaboration request data operations
type CollaborationRepository interface {
	Create(ctx context.Context, request *models.CollaborationRequest) error
	GetByID(ctx context.Context, id uint) (*models.CollaborationRequest, error)
	ListByExpert(ctx context.Context, expertID uint, limit, offset int) ([]*models.CollaborationRequest, error)
	ListByRequester(ctx context.Context, requesterID uint, limit, offset int) ([]*models.CollaborationRequest, error)
	HasPending(ctx context.Context, requesterID, expertID uint) (bool, error)
	SetStatus(ctx context.Context, id uint, status string) error
}

type collaborationRepository struct {
	db *gorm.DB
}

// NewCollaborationRepository creates a new collaboration request repository
func NewCollaborationRepository(db *gorm.DB) CollaborationRepository {
	return &collaborationRepository{db: db}
}

func (r *collaborationRepository) Create(ctx context.Context, request *models.CollaborationRequest) error {
	err := r.db.WithContext(ctx).Create(request).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *collaborationRepository) GetByID(ctx context.Context, id uint) (*models.CollaborationRequest, error) {
	var request models.CollaborationRequest
	if err := r.db.WithContext(ctx).
		Preload("Requester").
		Preload("Expert").
		First(&request, id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *collaborationRepository) ListByExpert(ctx context.Context, expertID uint, limit, offset int) ([]*models.CollaborationRequest, error) {
	var requests []*models.CollaborationRequest
	err := r.db.WithContext(ctx).
		Preload("Requester").
		Where("expert_id = ?", expertID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	return requests, err
}

func (r *collaborationRepository) ListByRequester(ctx context.Context, requesterID uint, limit, offset int) ([]*models.CollaborationRequest, error) {
	var requests []*models.CollaborationRequest
	err := r.db.WithContext(ctx).
		Preload("Expert").
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	return requests, err
}

func (r *collaborationRepository) HasPending(ctx context.Context, requesterID, expertID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CollaborationRequest{}).
		Where("requester_id = ? AND expert_id = ? AND status = ?", requesterID, expertID, models.CollabPending).
		Count(&count).Error
	return count > 0, err
}

func (r *collaborationRepository) SetStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).
		Model(&models.CollaborationRequest{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
