package repository

import (
	"context"
	"regexp"
	"testing"

	"potential/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestPostRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := &models.Post{AuthorID: 1, Content: "We just closed our seed round", ClientToken: "1f4b1a6e-0000-4000-8000-000000000001"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, post)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	t.Run("Success with Details", func(t *testing.T) {
		// counts and per-user flags arrive as subquery columns in one round trip
		rows := sqlmock.NewRows([]string{"id", "author_id", "content", "like_count", "comment_count", "liked", "bookmarked"}).
			AddRow(1, 10, "Post 1", 5, 3, true, false)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT posts.*, (SELECT COUNT(*) FROM likes`)).
			WillReturnRows(rows)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(10, "author10"))

		post, err := repo.GetByID(ctx, 1, 2)
		assert.NoError(t, err)
		assert.Equal(t, "Post 1", post.Content)
		assert.Equal(t, 5, post.LikeCount)
		assert.Equal(t, 3, post.CommentCount)
		assert.True(t, post.Liked)
		assert.False(t, post.Bookmarked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT posts.*,`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		post, err := repo.GetByID(ctx, 99, 2)
		assert.Error(t, err)
		assert.Nil(t, post)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostRepository_GetByClientToken(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	token := "1f4b1a6e-0000-4000-8000-000000000042"
	rows := sqlmock.NewRows([]string{"id", "author_id", "client_token", "like_count", "comment_count", "liked", "bookmarked"}).
		AddRow(7, 10, token, 0, 0, false, false)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT posts.*,`)).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

	post, err := repo.GetByClientToken(ctx, token, 10)
	assert.NoError(t, err)
	assert.Equal(t, uint(7), post.ID)
	assert.Equal(t, token, post.ClientToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_List_HiddenVisibility(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	t.Run("Author sees own hidden posts", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "author_id", "is_hidden", "like_count", "comment_count", "liked", "bookmarked"}).
			AddRow(1, 5, true, 0, 0, false, false).
			AddRow(2, 9, false, 2, 1, false, false)
		mock.ExpectQuery(regexp.QuoteMeta(`posts.is_hidden = false OR posts.author_id = $`)).
			WillReturnRows(rows)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5).AddRow(9))

		posts, err := repo.List(ctx, ListPostsQuery{Limit: 20, CurrentUserID: 5})
		assert.NoError(t, err)
		assert.Len(t, posts, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Anonymous never sees hidden posts", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "is_hidden", "like_count", "comment_count", "liked", "bookmarked"}).
			AddRow(2, false, 2, 1, false, false)
		mock.ExpectQuery(regexp.QuoteMeta(`posts.is_hidden = false`)).
			WillReturnRows(rows)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		posts, err := repo.List(ctx, ListPostsQuery{Limit: 20})
		assert.NoError(t, err)
		assert.Len(t, posts, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostRepository_Delete(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "likes"`)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "bookmarks"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "comments"`)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "posts"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(ctx, 1)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
