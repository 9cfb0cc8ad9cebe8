// Package service contains the application's business logic.
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

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxPostContentLen = 10000
	maxMediaURLs      = 10
)

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	likeRepo repository.LikeRepository
	pusher   notificationPusher
	events   notifications.EventSink
}

type CreatePostInput struct {
	AuthorID    uint
	Content     string
	MediaURLs   []string
	ClientToken string
}

type UpdatePostInput struct {
	UserID    uint
	PostID    uint
	Content   string
	MediaURLs []string
}

type DeletePostInput struct {
	UserID  uint
	PostID  uint
	IsAdmin bool
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	likeRepo repository.LikeRepository,
	pusher notificationPusher,
	events notifications.EventSink,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		likeRepo: likeRepo,
		pusher:   pusher,
		events:   events,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxPostContentLen {
		return nil, models.NewValidationError("Content too long (max 10000 characters)")
	}
	if len(in.MediaURLs) > maxMediaURLs {
		return nil, models.NewValidationError("Too many media attachments (max 10)")
	}
	for _, u := range in.MediaURLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			return nil, models.NewValidationError("media_urls must contain valid URLs")
		}
	}
	if in.ClientToken != "" {
		if _, err := uuid.Parse(in.ClientToken); err != nil {
			return nil, models.NewValidationError("client_token must be a UUID")
		}
	}

	author, err := s.userRepo.GetByID(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}
	if !author.CanPost() {
		return nil, models.NewForbiddenError("Membership approval is still pending")
	}

	// A retried create with the same token returns the row the first
	// attempt produced instead of inserting a duplicate.
	if in.ClientToken != "" {
		if existing, err := s.postRepo.GetByClientToken(ctx, in.ClientToken, in.AuthorID); err == nil {
			return existing, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	post := &models.Post{
		AuthorID:    in.AuthorID,
		Content:     in.Content,
		MediaURLs:   in.MediaURLs,
		ClientToken: in.ClientToken,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	created, err := s.postRepo.GetByID(ctx, post.ID, in.AuthorID)
	if err != nil {
		return nil, err
	}

	if ev, err := notifications.NewChangeEvent(
		notifications.EventInsert, notifications.TablePosts,
		created, nil, created.ClientToken, created.Version()); err == nil {
		notifications.PublishFeed(ctx, s.events, ev)
	}

	return created, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id, currentUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, err
	}
	if post.IsHidden && post.AuthorID != currentUserID {
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, nil
}

func (s *PostService) GetFeed(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.postRepo.List(ctx, repository.ListPostsQuery{
		Limit:         limit,
		Offset:        offset,
		CurrentUserID: currentUserID,
	})
}

func (s *PostService) GetUserPosts(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.postRepo.GetByAuthorID(ctx, userID, limit, offset, currentUserID)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", in.PostID)
		}
		return nil, err
	}

	if post.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxPostContentLen {
		return nil, models.NewValidationError("Content too long (max 10000 characters)")
	}

	post.Content = in.Content
	if in.MediaURLs != nil {
		if len(in.MediaURLs) > maxMediaURLs {
			return nil, models.NewValidationError("Too many media attachments (max 10)")
		}
		post.MediaURLs = in.MediaURLs
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	updated, err := s.postRepo.GetByID(ctx, post.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	s.publishPostUpdate(ctx, updated)
	return updated, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", in.PostID)
		}
		return err
	}

	if post.AuthorID != in.UserID && !in.IsAdmin {
		return models.NewForbiddenError("You can only delete your own posts")
	}

	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return err
	}

	if ev, err := notifications.NewChangeEvent(
		notifications.EventDelete, notifications.TablePosts,
		nil, post, post.ClientToken, post.Version()); err == nil {
		notifications.PublishFeed(ctx, s.events, ev)
	}
	return nil
}

// PinPost sets or clears the pinned flag. Admin-only, enforced by the route.
func (s *PostService) PinPost(ctx context.Context, postID uint, pinned bool) (*models.Post, error) {
	if err := s.postRepo.SetPinned(ctx, postID, pinned); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, err
	}
	updated, err := s.postRepo.GetByID(ctx, postID, 0)
	if err != nil {
		return nil, err
	}
	s.publishPostUpdate(ctx, updated)
	return updated, nil
}

// HidePost sets or clears the hidden flag. Admin-only, enforced by the route.
func (s *PostService) HidePost(ctx context.Context, postID uint, hidden bool) (*models.Post, error) {
	if err := s.postRepo.SetHidden(ctx, postID, hidden); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, err
	}
	updated, err := s.postRepo.GetByID(ctx, postID, 0)
	if err != nil {
		return nil, err
	}
	if hidden {
		// Clients that cannot see the post anymore treat this as a removal.
		if ev, err := notifications.NewChangeEvent(
			notifications.EventDelete, notifications.TablePosts,
			nil, updated, "", updated.Version()); err == nil {
			notifications.PublishFeed(ctx, s.events, ev)
		}
	} else {
		s.publishPostUpdate(ctx, updated)
	}
	return updated, nil
}

// ToggleLike flips the caller's like on a post and returns the refreshed
// row. The first like of someone else's post notifies its author.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, err
	}

	liked, err := s.likeRepo.IsLiked(ctx, userID, models.LikeablePost, postID)
	if err != nil {
		return nil, err
	}

	if liked {
		if err := s.likeRepo.Unlike(ctx, userID, models.LikeablePost, postID); err != nil {
			return nil, err
		}
	} else {
		if err := s.likeRepo.Like(ctx, userID, models.LikeablePost, postID); err != nil {
			return nil, err
		}
		if post.AuthorID != userID && s.pusher != nil {
			_ = s.pusher.Push(ctx, &models.Notification{
				UserID:        post.AuthorID,
				Type:          models.NotificationLikeOnPost,
				Title:         "like_on_post",
				ReferenceType: "post",
				ReferenceID:   postID,
			})
		}
	}

	updated, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	s.publishPostUpdate(ctx, updated)
	return updated, nil
}

func (s *PostService) publishPostUpdate(ctx context.Context, post *models.Post) {
	if ev, err := notifications.NewChangeEvent(
		notifications.EventUpdate, notifications.TablePosts,
		post, nil, post.ClientToken, commitStamp(post.Version())); err == nil {
		notifications.PublishFeed(ctx, s.events, ev)
	}
}

// commitStamp is the logical version stamped on an update event. Derived
// counters (like_count, comment_count) change without touching the row's
// updated_at, so the bare row version can be older than state clients
// already reconciled and the event would be discarded as stale; publish
// time advances it past that.
func commitStamp(version int64) int64 {
	if now := time.Now().UnixNano(); now > version {
		return now
	}
	return version
}
