package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"potential/internal/config"
	"potential/internal/models"
	"potential/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	createFn         func(context.Context, *models.User) error
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	listFn           func(context.Context, int, int) ([]*models.User, error)
	listByApprovalFn func(context.Context, string, int, int) ([]*models.User, error)
	updateFn         func(context.Context, *models.User) error
	setApprovalFn    func(context.Context, uint, string) error
	setRoleFn        func(context.Context, uint, string) error
}

func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *userRepoStub) ListByApproval(ctx context.Context, approval string, limit, offset int) ([]*models.User, error) {
	return s.listByApprovalFn(ctx, approval, limit, offset)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) SetApproval(ctx context.Context, id uint, approval string) error {
	return s.setApprovalFn(ctx, id, approval)
}
func (s *userRepoStub) SetRole(ctx context.Context, id uint, role string) error {
	return s.setRoleFn(ctx, id, role)
}

func approvedMemberRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Name: "Founder", Role: models.RoleMember, Approval: models.ApprovalApproved}, nil
		},
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func echoUserID(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"userID": c.Locals("userID")})
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	s := &Server{config: &config.Config{JWTSecret: "test-secret"}}

	token, err := s.generateToken(7, "Founder")
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/api/me", s.AuthRequired(), echoUserID)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(7), body["userID"])
}

func TestAuthRequired_RejectsForeignIssuer(t *testing.T) {
	s := &Server{config: &config.Config{JWTSecret: "test-secret"}}

	claims := jwt.MapClaims{
		"sub": "7",
		"iss": "someone-else",
		"aud": tokenAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/api/me", s.AuthRequired(), echoUserID)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequired_MissingToken(t *testing.T) {
	s := &Server{config: &config.Config{JWTSecret: "test-secret"}}

	app := fiber.New()
	app.Get("/api/me", s.AuthRequired(), echoUserID)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequired_WSTicket(t *testing.T) {
	rdb := newTestRedis(t)
	s := &Server{
		config: &config.Config{JWTSecret: "test-secret"},
		redis:  rdb,
	}

	app := fiber.New()
	app.Get("/api/ws/echo", s.AuthRequired(), echoUserID)

	ctx := context.Background()

	t.Run("valid ticket authenticates and is single-use", func(t *testing.T) {
		ticket := "ticket-1"
		key := fmt.Sprintf("ws_ticket:%s", ticket)
		require.NoError(t, rdb.Set(ctx, key, "123", time.Minute).Err())

		req := httptest.NewRequest(http.MethodGet, "/api/ws/echo?ticket="+ticket, nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]float64
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, float64(123), body["userID"])

		exists, err := rdb.Exists(ctx, key).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(0), exists, "ticket should be deleted after use")
	})

	t.Run("invalid ticket on websocket path is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/ws/echo?ticket=bogus", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestIssueWSTicket(t *testing.T) {
	rdb := newTestRedis(t)
	s := &Server{
		config: &config.Config{JWTSecret: "test-secret"},
		redis:  rdb,
	}

	app := fiber.New()
	app.Post("/api/ws/ticket", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(7))
		return c.Next()
	}, s.IssueWSTicket)

	req := httptest.NewRequest(http.MethodPost, "/api/ws/ticket", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	ticket, _ := body["ticket"].(string)
	require.NotEmpty(t, ticket)

	stored, err := rdb.Get(context.Background(), "ws_ticket:"+ticket).Result()
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(7), stored)
}

func TestLogout_RevokesToken(t *testing.T) {
	rdb := newTestRedis(t)
	s := &Server{
		config: &config.Config{JWTSecret: "test-secret"},
		redis:  rdb,
	}

	token, err := s.generateToken(7, "Founder")
	require.NoError(t, err)

	app := fiber.New()
	app.Post("/api/auth/logout", s.Logout)
	app.Get("/api/me", s.AuthRequired(), echoUserID)

	logoutReq := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	logoutReq.Header.Set("Authorization", "Bearer "+token)
	logoutResp, err := app.Test(logoutReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, logoutResp.StatusCode)
	_ = logoutResp.Body.Close()

	// The same token must now be rejected.
	meReq := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	meReq.Header.Set("Authorization", "Bearer "+token)
	meResp, err := app.Test(meReq)
	require.NoError(t, err)
	defer func() { _ = meResp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, meResp.StatusCode)
}

func TestRefresh_RotatesToken(t *testing.T) {
	rdb := newTestRedis(t)
	s := &Server{
		config:      &config.Config{JWTSecret: "test-secret"},
		redis:       rdb,
		userService: service.NewUserService(approvedMemberRepo(), nil),
	}

	oldToken, err := s.generateToken(7, "Founder")
	require.NoError(t, err)

	app := fiber.New()
	app.Post("/api/auth/refresh", s.Refresh)
	app.Get("/api/me", s.AuthRequired(), echoUserID)

	refreshReq := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	refreshReq.Header.Set("Authorization", "Bearer "+oldToken)
	refreshResp, err := app.Test(refreshReq)
	require.NoError(t, err)
	defer func() { _ = refreshResp.Body.Close() }()

	require.Equal(t, http.StatusOK, refreshResp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(refreshResp.Body).Decode(&body))
	newToken, _ := body["token"].(string)
	require.NotEmpty(t, newToken)
	assert.NotEqual(t, oldToken, newToken)

	// New token works, old one is revoked.
	newReq := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	newReq.Header.Set("Authorization", "Bearer "+newToken)
	newResp, err := app.Test(newReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, newResp.StatusCode)
	_ = newResp.Body.Close()

	oldReq := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	oldReq.Header.Set("Authorization", "Bearer "+oldToken)
	oldResp, err := app.Test(oldReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, oldResp.StatusCode)
	_ = oldResp.Body.Close()
}

func TestAdminRequired(t *testing.T) {
	t.Run("allows admin", func(t *testing.T) {
		repo := &userRepoStub{
			getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
				return &models.User{ID: id, Role: models.RoleAdmin}, nil
			},
		}
		s := &Server{userRepo: repo}

		app := fiber.New()
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("userID", uint(1))
			return c.Next()
		})
		app.Get("/admin", s.AdminRequired(), func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"ok": true})
		})

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("rejects member", func(t *testing.T) {
		s := &Server{userRepo: approvedMemberRepo()}

		app := fiber.New()
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("userID", uint(2))
			return c.Next()
		})
		app.Get("/admin", s.AdminRequired(), func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"ok": true})
		})

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Admin access required", body["error"])
	})
}
