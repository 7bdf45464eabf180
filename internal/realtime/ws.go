package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultPingInterval     = 20 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second

	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type streamError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WebSocketDialer opens realtime subscriptions over the backend's websocket
// endpoint.
type WebSocketDialer struct {
	endpoint     string
	project      string
	headers      func() http.Header
	pingInterval time.Duration
	dialer       *websocket.Dialer
	logger       *zap.Logger
}

func NewWebSocketDialer(endpoint, project string, headers func() http.Header, pingInterval, handshakeTimeout time.Duration, logger *zap.Logger) *WebSocketDialer {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	return &WebSocketDialer{
		endpoint:     endpoint,
		project:      project,
		headers:      headers,
		pingInterval: pingInterval,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		logger: logger,
	}
}

// URL builds the realtime address for channels from the REST endpoint.
func (d *WebSocketDialer) URL(channels []string) (string, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return "", errors.BadRequest(fmt.Sprintf("invalid endpoint %q", d.endpoint))
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", errors.BadRequest(fmt.Sprintf("unsupported endpoint scheme %q", u.Scheme))
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/realtime"

	q := url.Values{}
	q.Set("project", d.project)
	for _, ch := range channels {
		q.Add("channels[]", ch)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d *WebSocketDialer) Dial(ctx context.Context, channels []string) (Stream, error) {
	addr, err := d.URL(channels)
	if err != nil {
		return nil, err
	}

	var header http.Header
	if d.headers != nil {
		header = d.headers()
	}

	conn, resp, err := d.dialer.DialContext(ctx, addr, header)
	if err != nil {
		if resp != nil {
			return nil, errors.Transport(fmt.Sprintf("realtime handshake failed with status %d", resp.StatusCode), err)
		}
		return nil, errors.Transport("realtime handshake failed", err)
	}
	conn.SetReadLimit(maxMessageSize)

	s := &wsStream{
		conn:   conn,
		done:   make(chan struct{}),
		logger: d.logger,
	}
	go s.pingLoop(d.pingInterval)
	return s, nil
}

type wsStream struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func (s *wsStream) Recv(ctx context.Context) (RawEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return RawEvent{}, err
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return RawEvent{}, errors.Transport("realtime read failed", err)
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("ignoring undecodable realtime frame", zap.Error(err))
			continue
		}

		switch env.Type {
		case "event":
			var raw RawEvent
			if err := json.Unmarshal(env.Data, &raw); err != nil {
				s.logger.Warn("ignoring undecodable realtime event", zap.Error(err))
				continue
			}
			return raw, nil
		case "connected":
			s.logger.Debug("realtime connected", zap.ByteString("data", env.Data))
		case "pong":
		case "error":
			var se streamError
			_ = json.Unmarshal(env.Data, &se)
			s.logger.Warn("realtime server error",
				zap.Int("code", se.Code),
				zap.String("message", se.Message),
			)
		default:
			s.logger.Debug("ignoring realtime frame", zap.String("type", env.Type))
		}
	}
}

func (s *wsStream) write(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

func (s *wsStream) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.write(envelope{Type: "ping"}); err != nil {
				s.logger.Debug("realtime ping failed", zap.Error(err))
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()

		err = s.conn.Close()
	})
	return err
}
