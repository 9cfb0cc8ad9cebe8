package client

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API server root, e.g. "https://api.potential.dev".
	BaseURL string
	// Token is an optional JWT; Login replaces it.
	Token string
	// Notify receives toast messages. May be nil.
	Notify NotifyFunc
	// OnPost fires when someone else's post arrives live.
	OnPost func(Post)
	// OnNotification fires when a notification arrives live.
	OnNotification func(Notification)
	// ReconnectBackoff overrides the listener's fixed reconnect delay.
	ReconnectBackoff time.Duration
	Logger           *slog.Logger
}

// Client bundles the data layer for one application root: an isolated
// Store, a Coordinator for mutations and a Listener for live updates,
// all backed by the HTTP API at BaseURL.
type Client struct {
	Store       *Store
	Coordinator *Coordinator
	Listener    *Listener

	backend *HTTPBackend
}

// New constructs a Client. The push subscription stays disconnected
// until Connect is called.
func New(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	backend := NewHTTPBackend(cfg.BaseURL, cfg.Token, nil)
	store := NewStore(logger)
	transport, err := NewWSTransport(cfg.BaseURL, backend, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		Store:       store,
		Coordinator: NewCoordinator(store, backend, cfg.Notify, logger),
		Listener: NewListener(ListenerConfig{
			Transport:      transport,
			Store:          store,
			Backoff:        cfg.ReconnectBackoff,
			OnPost:         cfg.OnPost,
			OnNotification: cfg.OnNotification,
			Logger:         logger,
		}),
		backend: backend,
	}, nil
}

// Login authenticates and installs the session token.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.backend.Login(ctx, email, password)
}

// SetToken installs a previously obtained session token.
func (c *Client) SetToken(token string) { c.backend.SetToken(token) }

// Connect starts the live update subscription.
func (c *Client) Connect() { c.Listener.Start() }

// Close tears the live update subscription down.
func (c *Client) Close() { c.Listener.Stop() }

// LoadFeed fetches a feed page and installs it in the cache with fetch
// precedence. Pending optimistic patches for the feed are cleared by
// the authoritative write; in-flight mutations reconcile on their own
// round trips.
func (c *Client) LoadFeed(ctx context.Context, limit, offset int) ([]Post, error) {
	posts, err := c.backend.ListFeed(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	c.Store.Set(FeedKey, posts, OriginServerFetch, time.Now().UnixNano())
	for _, p := range posts {
		c.Store.Set(PostKey(p.ID), p, OriginServerFetch, p.Version())
	}
	return posts, nil
}

// LoadPost fetches one post into the cache.
func (c *Client) LoadPost(ctx context.Context, id int64) (*Post, error) {
	post, err := c.backend.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Store.Set(PostKey(post.ID), *post, OriginServerFetch, post.Version())
	return post, nil
}

// LoadComments fetches a post's comment list into the cache.
func (c *Client) LoadComments(ctx context.Context, postID int64) ([]Comment, error) {
	comments, err := c.backend.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	c.Store.Set(CommentsKey(postID), comments, OriginServerFetch, time.Now().UnixNano())
	return comments, nil
}

// LoadNotifications fetches the notification list into the cache.
func (c *Client) LoadNotifications(ctx context.Context, limit, offset int) ([]Notification, error) {
	items, err := c.backend.ListNotifications(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	c.Store.Set(NotificationsKey, items, OriginServerFetch, time.Now().UnixNano())
	return items, nil
}

// LoadUnreadCount fetches the unread badge count into the cache.
func (c *Client) LoadUnreadCount(ctx context.Context) (int, error) {
	count, err := c.backend.UnreadCount(ctx)
	if err != nil {
		return 0, err
	}
	c.Store.Set(UnreadCountKey, count, OriginServerFetch, time.Now().UnixNano())
	return count, nil
}
