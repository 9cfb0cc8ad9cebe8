package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// CreatePostInput is the payload for creating a post. ClientToken is a
// client-generated UUID persisted by the server and echoed in the
// response and push events, so the optimistic sentinel can be matched
// to the real row without content heuristics.
type CreatePostInput struct {
	Content     string   `json:"content"`
	MediaURLs   []string `json:"media_urls,omitempty"`
	ClientToken string   `json:"client_token,omitempty"`
}

// UpdatePostInput is the payload for editing a post.
type UpdatePostInput struct {
	Content   string   `json:"content"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// CreateCommentInput is the payload for commenting on a post.
type CreateCommentInput struct {
	Content     string `json:"content"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	ClientToken string `json:"client_token,omitempty"`
}

// Backend is the request/response API the Coordinator mutates against
// and the Client fetches from. Every method returns the authoritative
// row (or a typed error): ValidationError, AuthorizationError,
// NetworkError, TimeoutError or APIError.
type Backend interface {
	ListFeed(ctx context.Context, limit, offset int) ([]Post, error)
	GetPost(ctx context.Context, id int64) (*Post, error)
	CreatePost(ctx context.Context, in CreatePostInput) (*Post, error)
	UpdatePost(ctx context.Context, id int64, in UpdatePostInput) (*Post, error)
	DeletePost(ctx context.Context, id int64) error
	ListComments(ctx context.Context, postID int64) ([]Comment, error)
	CreateComment(ctx context.Context, postID int64, in CreateCommentInput) (*Comment, error)
	TogglePostLike(ctx context.Context, id int64) (*Post, error)
	ToggleCommentLike(ctx context.Context, id int64) (*Comment, error)
	ToggleBookmark(ctx context.Context, ref BookmarkRef) (*BookmarkState, error)
	ListNotifications(ctx context.Context, limit, offset int) ([]Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id int64) (*Notification, error)
	MarkAllNotificationsRead(ctx context.Context) error
	SetPostPinned(ctx context.Context, id int64, pinned bool) (*Post, error)
	SetPostHidden(ctx context.Context, id int64, hidden bool) (*Post, error)
	SetCommentHidden(ctx context.Context, id int64, hidden bool) (*Comment, error)
	WSTicket(ctx context.Context) (string, error)
}

// HTTPBackend implements Backend against the API server in this
// repository over plain HTTP.
type HTTPBackend struct {
	baseURL string
	httpc   *http.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPBackend creates a backend client for the given base URL
// (scheme + host, no trailing slash). token may be empty for anonymous
// browsing; SetToken installs one after login.
func NewHTTPBackend(baseURL, token string, httpc *http.Client) *HTTPBackend {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPBackend{
		baseURL: baseURL,
		httpc:   httpc,
		token:   token,
	}
}

// SetToken replaces the bearer token used on subsequent requests.
func (b *HTTPBackend) SetToken(token string) {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
}

func (b *HTTPBackend) bearer() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

// Login authenticates and installs the returned token on this backend.
func (b *HTTPBackend) Login(ctx context.Context, email, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := b.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return err
	}
	b.SetToken(out.Token)
	return nil
}

func (b *HTTPBackend) ListFeed(ctx context.Context, limit, offset int) ([]Post, error) {
	var posts []Post
	path := fmt.Sprintf("/api/posts?limit=%d&offset=%d", limit, offset)
	if err := b.do(ctx, http.MethodGet, path, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (b *HTTPBackend) GetPost(ctx context.Context, id int64) (*Post, error) {
	var post Post
	if err := b.do(ctx, http.MethodGet, fmt.Sprintf("/api/posts/%d", id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (b *HTTPBackend) CreatePost(ctx context.Context, in CreatePostInput) (*Post, error) {
	var post Post
	if err := b.do(ctx, http.MethodPost, "/api/posts", in, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (b *HTTPBackend) UpdatePost(ctx context.Context, id int64, in UpdatePostInput) (*Post, error) {
	var post Post
	if err := b.do(ctx, http.MethodPut, fmt.Sprintf("/api/posts/%d", id), in, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (b *HTTPBackend) DeletePost(ctx context.Context, id int64) error {
	return b.do(ctx, http.MethodDelete, fmt.Sprintf("/api/posts/%d", id), nil, nil)
}

func (b *HTTPBackend) ListComments(ctx context.Context, postID int64) ([]Comment, error) {
	var comments []Comment
	path := fmt.Sprintf("/api/posts/%d/comments", postID)
	if err := b.do(ctx, http.MethodGet, path, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (b *HTTPBackend) CreateComment(ctx context.Context, postID int64, in CreateCommentInput) (*Comment, error) {
	var comment Comment
	path := fmt.Sprintf("/api/posts/%d/comments", postID)
	if err := b.do(ctx, http.MethodPost, path, in, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (b *HTTPBackend) TogglePostLike(ctx context.Context, id int64) (*Post, error) {
	var post Post
	if err := b.do(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (b *HTTPBackend) ToggleCommentLike(ctx context.Context, id int64) (*Comment, error) {
	var comment Comment
	if err := b.do(ctx, http.MethodPost, fmt.Sprintf("/api/comments/%d/like", id), nil, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (b *HTTPBackend) ToggleBookmark(ctx context.Context, ref BookmarkRef) (*BookmarkState, error) {
	var state BookmarkState
	path := fmt.Sprintf("/api/bookmarks/%s/%d", ref.Kind, ref.ID)
	if err := b.do(ctx, http.MethodPost, path, nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (b *HTTPBackend) ListNotifications(ctx context.Context, limit, offset int) ([]Notification, error) {
	var items []Notification
	path := fmt.Sprintf("/api/notifications?limit=%d&offset=%d", limit, offset)
	if err := b.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (b *HTTPBackend) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := b.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

func (b *HTTPBackend) MarkNotificationRead(ctx context.Context, id int64) (*Notification, error) {
	var n Notification
	if err := b.do(ctx, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", id), nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (b *HTTPBackend) MarkAllNotificationsRead(ctx context.Context) error {
	return b.do(ctx, http.MethodPost, "/api/notifications/read-all", nil, nil)
}

func (b *HTTPBackend) SetPostPinned(ctx context.Context, id int64, pinned bool) (*Post, error) {
	method := http.MethodPost
	if !pinned {
		method = http.MethodDelete
	}
	var post Post
	if err := b.do(ctx, method, fmt.Sprintf("/api/admin/posts/%d/pin", id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (b *HTTPBackend) SetPostHidden(ctx context.Context, id int64, hidden bool) (*Post, error) {
	method := http.MethodPost
	if !hidden {
		method = http.MethodDelete
	}
	var post Post
	if err := b.do(ctx, method, fmt.Sprintf("/api/admin/posts/%d/hide", id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (b *HTTPBackend) SetCommentHidden(ctx context.Context, id int64, hidden bool) (*Comment, error) {
	method := http.MethodPost
	if !hidden {
		method = http.MethodDelete
	}
	var comment Comment
	if err := b.do(ctx, method, fmt.Sprintf("/api/admin/comments/%d/hide", id), nil, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// WSTicket requests a single-use websocket ticket for /api/ws.
func (b *HTTPBackend) WSTicket(ctx context.Context) (string, error) {
	var out struct {
		Ticket string `json:"ticket"`
	}
	if err := b.do(ctx, http.MethodPost, "/api/ws/ticket", nil, &out); err != nil {
		return "", err
	}
	return out.Ticket, nil
}

// do executes one request and decodes the response into out, mapping
// failures to the package's typed errors.
func (b *HTTPBackend) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := b.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.httpc.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Err: err}
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return &TimeoutError{Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Err: err}
	}
	return &NetworkError{Err: err}
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthorizationError{Message: payload.Error}
	case resp.StatusCode == http.StatusBadRequest && payload.Code == "VALIDATION_ERROR":
		return &ValidationError{Message: payload.Error}
	default:
		return &APIError{Status: resp.StatusCode, Code: payload.Code, Message: payload.Error}
	}
}
