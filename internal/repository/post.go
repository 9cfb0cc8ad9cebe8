package repository

import (
	"context"

	"potential/internal/cache"
	"potential/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error)
	GetByClientToken(ctx context.Context, token string, currentUserID uint) (*models.Post, error)
	List(ctx context.Context, in ListPostsQuery) ([]*models.Post, error)
	GetByAuthorID(ctx context.Context, authorID uint, limit, offset int, currentUserID uint) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	SetPinned(ctx context.Context, id uint, pinned bool) error
	SetHidden(ctx context.Context, id uint, hidden bool) error
	Delete(ctx context.Context, id uint) error
}

// ListPostsQuery carries feed listing parameters.
type ListPostsQuery struct {
	Limit         int
	Offset        int
	CurrentUserID uint
	IncludeHidden bool
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Create(post).Error
	if err == nil {
		cache.InvalidateFeed(ctx)
	}
	return err
}

// applyPostDetails adds subqueries to fetch counts and per-user flags in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.likeable_type = 'post' AND likes.likeable_id = posts.id) as like_count, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.is_hidden = false) as comment_count"

	if currentUserID != 0 {
		return db.Select(selectQuery+
			", EXISTS(SELECT 1 FROM likes WHERE likes.likeable_type = 'post' AND likes.likeable_id = posts.id AND likes.user_id = ?) as liked"+
			", EXISTS(SELECT 1 FROM bookmarks WHERE bookmarks.bookmarkable_type = 'post' AND bookmarks.bookmarkable_id = posts.id AND bookmarks.user_id = ?) as bookmarked",
			currentUserID, currentUserID)
	}

	return db.Select(selectQuery + ", false as liked, false as bookmarked")
}

func (r *postRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	var post models.Post

	var err error
	if currentUserID == 0 {
		// Anonymous detail reads are identical for everyone and safe to cache.
		err = cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
			return r.applyPostDetails(r.db.WithContext(ctx), 0).
				Preload("Author").
				First(&post, id).Error
		})
	} else {
		err = r.applyPostDetails(r.db.WithContext(ctx), currentUserID).
			Preload("Author").
			First(&post, id).Error
	}

	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByClientToken(ctx context.Context, token string, currentUserID uint) (*models.Post, error) {
	var post models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx), currentUserID).
		Preload("Author").
		Where("client_token = ?", token).
		First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, in ListPostsQuery) ([]*models.Post, error) {
	var posts []*models.Post
	base := r.applyPostDetails(r.db.WithContext(ctx), in.CurrentUserID).
		Preload("Author")

	if !in.IncludeHidden {
		// Hidden posts stay visible to their own author.
		if in.CurrentUserID != 0 {
			base = base.Where("posts.is_hidden = false OR posts.author_id = ?", in.CurrentUserID)
		} else {
			base = base.Where("posts.is_hidden = false")
		}
	}

	err := base.
		Order("is_pinned DESC, created_at DESC").
		Limit(in.Limit).
		Offset(in.Offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) GetByAuthorID(ctx context.Context, authorID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx), currentUserID).
		Preload("Author").
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return err
	}
	cache.InvalidatePost(ctx, post.ID)
	cache.InvalidateFeed(ctx)
	return nil
}

func (r *postRepository) SetPinned(ctx context.Context, id uint, pinned bool) error {
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Update("is_pinned", pinned).Error
	if err == nil {
		cache.InvalidatePost(ctx, id)
		cache.InvalidateFeed(ctx)
	}
	return err
}

func (r *postRepository) SetHidden(ctx context.Context, id uint, hidden bool) error {
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Update("is_hidden", hidden).Error
	if err == nil {
		cache.InvalidatePost(ctx, id)
		cache.InvalidateFeed(ctx)
	}
	return err
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	// Hard delete: comments and likes referencing the post go with it.
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("likeable_type = ? AND likeable_id = ?", models.LikeablePost, id).
			Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bookmarkable_type = ? AND bookmarkable_id = ?", models.BookmarkablePost, id).
			Delete(&models.Bookmark{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err == nil {
		cache.InvalidatePost(ctx, id)
		cache.InvalidateFeed(ctx)
	}
	return err
}
