package service

import (
	"context"
	"errors"

	"potential/internal/models"
	"potential/internal/repository"

	"gorm.io/gorm"
)

type BookmarkService struct {
	bookmarkRepo repository.BookmarkRepository
	postRepo     repository.PostRepository
	programRepo  repository.ProgramRepository
	expertRepo   repository.ExpertRepository
}

func NewBookmarkService(
	bookmarkRepo repository.BookmarkRepository,
	postRepo repository.PostRepository,
	programRepo repository.ProgramRepository,
	expertRepo repository.ExpertRepository,
) *BookmarkService {
	return &BookmarkService{
		bookmarkRepo: bookmarkRepo,
		postRepo:     postRepo,
		programRepo:  programRepo,
		expertRepo:   expertRepo,
	}
}

// ToggleBookmark flips the caller's bookmark on a target and reports the
// resulting state.
func (s *BookmarkService) ToggleBookmark(ctx context.Context, userID uint, targetType string, targetID uint) (bool, error) {
	if err := s.targetExists(ctx, userID, targetType, targetID); err != nil {
		return false, err
	}

	bookmarked, err := s.bookmarkRepo.IsBookmarked(ctx, userID, targetType, targetID)
	if err != nil {
		return false, err
	}
	if bookmarked {
		if err := s.bookmarkRepo.Unbookmark(ctx, userID, targetType, targetID); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := s.bookmarkRepo.Bookmark(ctx, userID, targetType, targetID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *BookmarkService) ListBookmarks(ctx context.Context, userID uint, targetType string, limit, offset int) ([]*models.Bookmark, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	switch targetType {
	case "", models.BookmarkablePost, models.BookmarkableSupportProgram, models.BookmarkableExpertProfile:
	default:
		return nil, models.NewValidationError("Invalid bookmark type")
	}
	return s.bookmarkRepo.ListByUser(ctx, userID, targetType, limit, offset)
}

func (s *BookmarkService) targetExists(ctx context.Context, userID uint, targetType string, targetID uint) error {
	var err error
	switch targetType {
	case models.BookmarkablePost:
		_, err = s.postRepo.GetByID(ctx, targetID, userID)
	case models.BookmarkableSupportProgram:
		_, err = s.programRepo.GetByID(ctx, targetID)
	case models.BookmarkableExpertProfile:
		_, err = s.expertRepo.GetByID(ctx, targetID)
	default:
		return models.NewValidationError("Invalid bookmark type")
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Bookmark target", targetID)
		}
		return err
	}
	return nil
}
