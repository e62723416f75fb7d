// Package ws dials the inbox change feed over a WebSocket and delivers
// decoded change events to registered handlers. Dropped connections are
// re-established with exponential backoff until the subscription closes.
package ws

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/hirelight/hirelight/internal/backend"
	"github.com/hirelight/hirelight/internal/logging"
	"github.com/hirelight/hirelight/internal/models"
	"github.com/rs/zerolog"
)

// Config carries the connection parameters for the change feed.
type Config struct {
	// URL is the http(s) base of the sync service. The scheme is rewritten
	// to ws(s) before dialing.
	URL   string
	Token string

	ReconnectBase     time.Duration
	ReconnectMax      time.Duration
	HeartbeatInterval time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectBase == 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
}

// Transport implements backend.PushTransport over a WebSocket.
type Transport struct {
	config Config
	logger zerolog.Logger
}

// NewTransport builds a Transport. The config URL must be set.
func NewTransport(config Config) *Transport {
	config.defaults()
	return &Transport{
		config: config,
		logger: logging.Component("push.ws"),
	}
}

// Subscribe dials the feed for userID and streams events into handlers
// until the returned subscription is closed. The initial dial is
// synchronous so callers learn immediately whether the feed is reachable.
func (t *Transport) Subscribe(ctx context.Context, userID string, handlers backend.Handlers) (backend.Subscription, error) {
	feedURL, err := t.feedURL(userID)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	conn, err := dial(ctx, feedURL)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &stream{
		transport: t,
		url:       feedURL,
		userID:    userID,
		handlers:  handlers,
		cancel:    cancel,
		backoff:   newBackoff(t.config.ReconnectBase, t.config.ReconnectMax),
		logger:    t.logger.With().Str("user_id", userID).Logger(),
	}
	s.backoff.markConnected()
	s.wg.Add(1)
	go s.run(streamCtx, conn)
	return s, nil
}

func (t *Transport) feedURL(userID string) (string, error) {
	if t.config.URL == "" {
		return "", fmt.Errorf("push: feed URL not configured")
	}
	base := strings.Replace(t.config.URL, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	q := url.Values{"user": {userID}}
	if t.config.Token != "" {
		q.Set("token", t.config.Token)
	}
	return base + "/v1/inbox/feed?" + q.Encode(), nil
}

func dial(ctx context.Context, feedURL string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial feed: %v", models.ErrNetwork, err)
	}
	return conn, nil
}

// stream owns one logical subscription across reconnects.
type stream struct {
	transport *Transport
	url       string
	userID    string
	handlers  backend.Handlers
	cancel    context.CancelFunc
	backoff   *backoff
	logger    zerolog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Close tears the stream down. Safe to call more than once.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
	})
	s.wg.Wait()
	return nil
}

func (s *stream) run(ctx context.Context, conn *websocket.Conn) {
	defer s.wg.Done()
	for {
		err := s.readLoop(ctx, conn)
		conn.Close(websocket.StatusNormalClosure, "")
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Msg("feed connection lost, reconnecting")

		conn = s.redial(ctx)
		if conn == nil {
			return
		}
	}
}

// redial blocks until a new connection is established or ctx ends.
func (s *stream) redial(ctx context.Context) *websocket.Conn {
	for {
		delay := s.backoff.nextDelay()
		s.logger.Debug().Dur("delay", delay).Int("attempt", s.backoff.attempt).Msg("scheduling reconnect")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		conn, err := dial(ctx, s.url)
		if err == nil {
			s.backoff.markConnected()
			s.logger.Info().Msg("feed reconnected")
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn().Err(err).Msg("reconnect failed")
	}
}

func (s *stream) readLoop(ctx context.Context, conn *websocket.Conn) error {
	heartbeat := time.NewTicker(s.transport.config.HeartbeatInterval)
	defer heartbeat.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
				err := conn.Ping(pingCtx)
				pingCancel()
				if err != nil {
					conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		s.dispatch(data)
	}
}

func (s *stream) dispatch(data []byte) {
	event, err := models.DecodeChangeEvent(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dropping malformed change event")
		return
	}
	switch event.Kind {
	case models.ChangeKindThread:
		if s.handlers.OnThreadChange != nil {
			s.handlers.OnThreadChange(*event.Thread)
		}
	case models.ChangeKindMessage:
		if s.handlers.OnMessageInsert != nil {
			s.handlers.OnMessageInsert(*event.Message)
		}
	}
}
