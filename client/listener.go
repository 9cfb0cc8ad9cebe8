package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ListenerState is the push subscription's lifecycle state.
type ListenerState int32

const (
	StateDisconnected ListenerState = iota
	StateConnecting
	StateSubscribed
	StateReconnecting
)

func (s ListenerState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// PushEvent is one server-pushed row change, mirroring the server's
// wire format. CommitTS is the change's logical version in unix
// nanoseconds, at least the row's updated_at; it is compared against
// cached versions to drop stale events.
type PushEvent struct {
	EventType   string          `json:"eventType"`
	Table       string          `json:"table"`
	New         json.RawMessage `json:"new,omitempty"`
	Old         json.RawMessage `json:"old,omitempty"`
	ClientToken string          `json:"client_token,omitempty"`
	CommitTS    int64           `json:"commit_ts"`
}

// Event type and table names on the push channel.
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"

	TablePosts         = "posts"
	TableComments      = "comments"
	TableNotifications = "notifications"
)

// EventStream is one live connection's event feed. The channel closes
// when the connection dies.
type EventStream interface {
	Events() <-chan PushEvent
	Close() error
}

// PushTransport opens event streams. Implemented by WSTransport; tests
// substitute fakes to drive the Listener's state machine directly.
type PushTransport interface {
	Connect(ctx context.Context) (EventStream, error)
}

// ListenerConfig configures a Listener. Transport and Store are
// required; callbacks and logger may be nil.
type ListenerConfig struct {
	Transport PushTransport
	Store     *Store
	// Backoff is the fixed delay before a reconnect attempt.
	Backoff time.Duration
	// OnPost fires after a new post lands in the cache.
	OnPost func(Post)
	// OnNotification fires after a new notification lands in the cache.
	OnNotification func(Notification)
	// OnStateChange observes every state transition.
	OnStateChange func(ListenerState)
	Logger        *slog.Logger
}

// Listener maintains the push subscription and applies incoming change
// events to the Store with push precedence. It runs as a single
// message-driven loop: disconnected, connecting, subscribed, then
// reconnecting after a fixed backoff on error; teardown from any state
// cancels a pending reconnect timer.
type Listener struct {
	cfg   ListenerConfig
	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewListener creates a Listener in the disconnected state.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Listener{cfg: cfg}
}

// State returns the current lifecycle state.
func (l *Listener) State() ListenerState {
	return ListenerState(l.state.Load())
}

func (l *Listener) setState(s ListenerState) {
	if ListenerState(l.state.Swap(int32(s))) == s {
		return
	}
	l.cfg.Logger.Debug("listener state", slog.String("state", s.String()))
	if l.cfg.OnStateChange != nil {
		l.cfg.OnStateChange(s)
	}
}

// Start begins connecting. Calling Start on a running listener is a
// no-op.
func (l *Listener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

// Stop tears the subscription down and waits for the run loop to exit.
// Any pending reconnect timer is cancelled.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Listener) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer l.setState(StateDisconnected)

	for {
		l.setState(StateConnecting)
		stream, err := l.cfg.Transport.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.cfg.Logger.Debug("push connect failed", slog.Any("error", err))
			if !l.backoff(ctx) {
				return
			}
			continue
		}

		l.setState(StateSubscribed)
		l.consume(ctx, stream)
		stream.Close()
		if ctx.Err() != nil {
			return
		}
		if !l.backoff(ctx) {
			return
		}
	}
}

// backoff waits the fixed reconnect delay; false means teardown won.
func (l *Listener) backoff(ctx context.Context) bool {
	l.setState(StateReconnecting)
	timer := time.NewTimer(l.cfg.Backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (l *Listener) consume(ctx context.Context, stream EventStream) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			l.apply(ev)
		}
	}
}

// apply merges one pushed change into the Store. Push writes are
// authoritative: they win over pending optimistic state, and a token
// match drops the originating mutation's own patch (the user's write
// echoing back). Events older than cached state are dropped silently.
func (l *Listener) apply(ev PushEvent) {
	switch ev.Table {
	case TablePosts:
		l.applyPost(ev)
	case TableComments:
		l.applyComment(ev)
	case TableNotifications:
		l.applyNotification(ev)
	default:
		l.cfg.Logger.Debug("ignoring event for unknown table", slog.String("table", ev.Table))
	}
}

func (l *Listener) applyPost(ev PushEvent) {
	if ev.EventType == EventDelete {
		var old Post
		if err := json.Unmarshal(ev.Old, &old); err != nil {
			l.cfg.Logger.Debug("undecodable post delete event", slog.Any("error", err))
			return
		}
		l.cfg.Store.Evict(PostKey(old.ID))
		l.cfg.Store.Evict(CommentsKey(old.ID))
		l.cfg.Store.mergeBase(FeedKey, "", func(base any) any {
			list, _ := base.([]Post)
			return removePost(list, old.ID)
		})
		return
	}

	var row Post
	if err := json.Unmarshal(ev.New, &row); err != nil {
		l.cfg.Logger.Debug("undecodable post event", slog.Any("error", err))
		return
	}
	if err := l.cfg.Store.Set(PostKey(row.ID), row, OriginPush, ev.CommitTS); errors.Is(err, ErrStaleEvent) {
		return
	}
	l.cfg.Store.mergeBase(FeedKey, ev.ClientToken, func(base any) any {
		list, _ := base.([]Post)
		return upsertPost(list, row, ev.EventType == EventInsert)
	})
	if ev.EventType == EventInsert && l.cfg.OnPost != nil {
		l.cfg.OnPost(row)
	}
}

func (l *Listener) applyComment(ev PushEvent) {
	if ev.EventType == EventDelete {
		var old Comment
		if err := json.Unmarshal(ev.Old, &old); err != nil {
			l.cfg.Logger.Debug("undecodable comment delete event", slog.Any("error", err))
			return
		}
		l.cfg.Store.mergeBase(CommentsKey(old.PostID), "", func(base any) any {
			list, _ := base.([]Comment)
			return removeComment(list, old.ID)
		})
		l.cfg.Store.Invalidate(string(PostKey(old.PostID)))
		return
	}

	var row Comment
	if err := json.Unmarshal(ev.New, &row); err != nil {
		l.cfg.Logger.Debug("undecodable comment event", slog.Any("error", err))
		return
	}
	l.cfg.Store.mergeBase(CommentsKey(row.PostID), ev.ClientToken, func(base any) any {
		list, _ := base.([]Comment)
		return upsertComment(list, row)
	})
	if ev.EventType == EventInsert {
		// Comment counts are authoritative on the post row; schedule a
		// refetch rather than counting client-side.
		l.cfg.Store.Invalidate(string(PostKey(row.PostID)))
	}
}

func (l *Listener) applyNotification(ev PushEvent) {
	var row Notification
	if err := json.Unmarshal(ev.New, &row); err != nil {
		l.cfg.Logger.Debug("undecodable notification event", slog.Any("error", err))
		return
	}
	l.cfg.Store.mergeBase(NotificationsKey, "", func(base any) any {
		list, _ := base.([]Notification)
		return upsertNotification(list, row)
	})
	l.cfg.Store.Invalidate(string(UnreadCountKey))
	if ev.EventType == EventInsert && l.cfg.OnNotification != nil {
		l.cfg.OnNotification(row)
	}
}
