package service

import (
	"context"
	"errors"
	"strings"

	"potential/internal/models"
	"potential/internal/notifications"
	"potential/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxCommentContentLen = 2000

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	likeRepo    repository.LikeRepository
	pusher      notificationPusher
	events      notifications.EventSink
}

type CreateCommentInput struct {
	AuthorID    uint
	PostID      uint
	ParentID    *uint
	Content     string
	ClientToken string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	likeRepo repository.LikeRepository,
	pusher notificationPusher,
	events notifications.EventSink,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
		likeRepo:    likeRepo,
		pusher:      pusher,
		events:      events,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxCommentContentLen {
		return nil, models.NewValidationError("Content too long (max 2000 characters)")
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

	post, err := s.postRepo.GetByID(ctx, in.PostID, in.AuthorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", in.PostID)
		}
		return nil, err
	}

	// Replies nest exactly one level: the parent must live on the same
	// post and must itself be a top-level comment.
	if in.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *in.ParentID, in.AuthorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, models.NewNotFoundError("Comment", *in.ParentID)
			}
			return nil, err
		}
		if parent.PostID != in.PostID {
			return nil, models.NewValidationError("Parent comment belongs to a different post")
		}
		if parent.ParentID != nil {
			return nil, models.NewValidationError("Replies cannot be nested further")
		}
	}

	comment := &models.Comment{
		PostID:      in.PostID,
		AuthorID:    in.AuthorID,
		ParentID:    in.ParentID,
		Content:     in.Content,
		ClientToken: in.ClientToken,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	created, err := s.commentRepo.GetByID(ctx, comment.ID, in.AuthorID)
	if err != nil {
		return nil, err
	}

	if ev, err := notifications.NewChangeEvent(
		notifications.EventInsert, notifications.TableComments,
		created, nil, created.ClientToken, created.Version()); err == nil {
		notifications.PublishFeed(ctx, s.events, ev)
	}
	// The parent post's comment_count changed with it; the count moves
	// without the post's updated_at, hence the commit stamp.
	if refreshed, err := s.postRepo.GetByID(ctx, in.PostID, 0); err == nil {
		if ev, err := notifications.NewChangeEvent(
			notifications.EventUpdate, notifications.TablePosts,
			refreshed, nil, "", commitStamp(refreshed.Version())); err == nil {
			notifications.PublishFeed(ctx, s.events, ev)
		}
	}

	if post.AuthorID != in.AuthorID && s.pusher != nil {
		_ = s.pusher.Push(ctx, &models.Notification{
			UserID:        post.AuthorID,
			Type:          models.NotificationCommentOnPost,
			Title:         "comment_on_post",
			ReferenceType: "post",
			ReferenceID:   in.PostID,
		})
	}

	return created, nil
}

func (s *CommentService) ListComments(ctx context.Context, postID uint, currentUserID uint) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, currentUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID, currentUserID, false)
}

func (s *CommentService) UpdateComment(ctx context.Context, userID, commentID uint, content string) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", commentID)
		}
		return nil, err
	}
	if comment.AuthorID != userID {
		return nil, models.NewForbiddenError("You can only edit your own comments")
	}
	if strings.TrimSpace(content) == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(content) > maxCommentContentLen {
		return nil, models.NewValidationError("Content too long (max 2000 characters)")
	}

	comment.Content = content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}

	updated, err := s.commentRepo.GetByID(ctx, commentID, userID)
	if err != nil {
		return nil, err
	}
	if ev, err := notifications.NewChangeEvent(
		notifications.EventUpdate, notifications.TableComments,
		updated, nil, updated.ClientToken, updated.Version()); err == nil {
		notifications.PublishFeed(ctx, s.events, ev)
	}
	return updated, nil
}

func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID uint, isAdmin bool) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Comment", commentID)
		}
		return err
	}
	if comment.AuthorID != userID && !isAdmin {
		return models.NewForbiddenError("You can only delete your own comments")
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return err
	}

	if ev, err := notifications.NewChangeEvent(
		notifications.EventDelete, notifications.TableComments,
		nil, comment, comment.ClientToken, comment.Version()); err == nil {
		notifications.PublishFeed(ctx, s.events, ev)
	}
	if refreshed, err := s.postRepo.GetByID(ctx, comment.PostID, 0); err == nil {
		if ev, err := notifications.NewChangeEvent(
			notifications.EventUpdate, notifications.TablePosts,
			refreshed, nil, "", commitStamp(refreshed.Version())); err == nil {
			notifications.PublishFeed(ctx, s.events, ev)
		}
	}
	return nil
}

// HideComment sets or clears the hidden flag. Admin-only, enforced by the route.
func (s *CommentService) HideComment(ctx context.Context, commentID uint, hidden bool) (*models.Comment, error) {
	if err := s.commentRepo.SetHidden(ctx, commentID, hidden); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", commentID)
		}
		return nil, err
	}
	updated, err := s.commentRepo.GetByID(ctx, commentID, 0)
	if err != nil {
		return nil, err
	}
	if hidden {
		// Hidden comments vanish for everyone but moderators; clients
		// treat this as a removal, so the row travels in old.
		if ev, err := notifications.NewChangeEvent(
			notifications.EventDelete, notifications.TableComments,
			nil, updated, "", updated.Version()); err == nil {
			notifications.PublishFeed(ctx, s.events, ev)
		}
	} else {
		if ev, err := notifications.NewChangeEvent(
			notifications.EventUpdate, notifications.TableComments,
			updated, nil, "", updated.Version()); err == nil {
			notifications.PublishFeed(ctx, s.events, ev)
		}
	}
	return updated, nil
}

// ToggleCommentLike flips the caller's like on a comment and returns the
// refreshed row.
func (s *CommentService) ToggleCommentLike(ctx context.Context, userID, commentID uint) (*models.Comment, error) {
	if _, err := s.commentRepo.GetByID(ctx, commentID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", commentID)
		}
		return nil, err
	}

	liked, err := s.likeRepo.IsLiked(ctx, userID, models.LikeableComment, commentID)
	if err != nil {
		return nil, err
	}
	if liked {
		err = s.likeRepo.Unlike(ctx, userID, models.LikeableComment, commentID)
	} else {
		err = s.likeRepo.Like(ctx, userID, models.LikeableComment, commentID)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.commentRepo.GetByID(ctx, commentID, userID)
	if err != nil {
		return nil, err
	}
	if ev, err := notifications.NewChangeEvent(
		notifications.EventUpdate, notifications.TableComments,
		updated, nil, "", updated.Version()); err == nil {
		notifications.PublishFeed(ctx, s.events, ev)
	}
	return updated, nil
}
