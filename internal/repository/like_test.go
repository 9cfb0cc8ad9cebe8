package repository

import (
	"context"
	"regexp"
	"testing"

	"potential/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestLikeRepository_Like_Idempotent(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	// first like inserts a row
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO likes`)).
		WithArgs(1, models.LikeablePost, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Like(ctx, 1, models.LikeablePost, 7))

	// the duplicate hits ON CONFLICT DO NOTHING and succeeds anyway
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO likes`)).
		WithArgs(1, models.LikeablePost, 7).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Like(ctx, 1, models.LikeablePost, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_Unlike(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "likes"`)).
		WithArgs(1, models.LikeableComment, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Unlike(ctx, 1, models.LikeableComment, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_IsLiked(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "likes"`)).
		WithArgs(1, models.LikeablePost, 7).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	liked, err := repo.IsLiked(ctx, 1, models.LikeablePost, 7)
	assert.NoError(t, err)
	assert.True(t, liked)
	assert.NoError(t, mock.ExpectationsWereMet())
}
