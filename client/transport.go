package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// TicketSource issues single-use websocket tickets. HTTPBackend
// implements it.
type TicketSource interface {
	WSTicket(ctx context.Context) (string, error)
}

// WSTransport connects to the server's /api/ws endpoint. Each Connect
// fetches a fresh ticket (tickets are single-use) and dials a new
// websocket; the Listener owns reconnection.
type WSTransport struct {
	wsURL   string
	tickets TicketSource
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// NewWSTransport builds a transport for the given API base URL
// (http(s)://host), converting the scheme for the websocket dial.
func NewWSTransport(baseURL string, tickets TicketSource, logger *slog.Logger) (*WSTransport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/ws"
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &WSTransport{
		wsURL:   u.String(),
		tickets: tickets,
		dialer:  websocket.DefaultDialer,
		logger:  logger,
	}, nil
}

// Connect obtains a ticket, dials the websocket and starts a read loop
// that feeds decoded events to the returned stream.
func (t *WSTransport) Connect(ctx context.Context) (EventStream, error) {
	ticket, err := t.tickets.WSTicket(ctx)
	if err != nil {
		return nil, err
	}

	dialURL := t.wsURL + "?ticket=" + url.QueryEscape(ticket)
	conn, resp, err := t.dialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return nil, &AuthorizationError{Message: "websocket handshake rejected"}
		}
		return nil, &NetworkError{Err: err}
	}

	s := &wsStream{
		conn:   conn,
		events: make(chan PushEvent, 16),
		done:   make(chan struct{}),
	}
	go s.readLoop(t.logger)
	return s, nil
}

type wsStream struct {
	conn      *websocket.Conn
	events    chan PushEvent
	done      chan struct{}
	closeOnce sync.Once
}

func (s *wsStream) Events() <-chan PushEvent { return s.events }

// Close tears the connection down; the read loop exits on the next
// read error and closes the event channel.
func (s *wsStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.conn.Close()
}

func (s *wsStream) readLoop(logger *slog.Logger) {
	defer close(s.events)
	for {
		var ev PushEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			select {
			case <-s.done:
			default:
				logger.Debug("websocket read failed", slog.Any("error", err))
			}
			return
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}
