package response

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/relay/core/body"
	"github.com/dmitrymomot/relay/core/handler"
)

type wsConfig struct {
	upgrader       *websocket.Upgrader
	responseHeader http.Header
	onConnect      func(context.Context, *websocket.Conn) error
	onDisconnect   func(context.Context, *websocket.Conn)
	onError        func(context.Context, error)

	messageType  int
	writeTimeout time.Duration
	bodyOpts     []body.Option
}

type WebSocketOption func(*wsConfig)

func WithWSReadBuffer(size int) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.ReadBufferSize = size
	}
}

func WithWSWriteBuffer(size int) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.WriteBufferSize = size
	}
}

func WithWSHandshakeTimeout(timeout time.Duration) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.HandshakeTimeout = timeout
	}
}

func WithWSOriginCheck(fn func(r *http.Request) bool) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.CheckOrigin = fn
	}
}

func WithWSAllowAnyOrigin() WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	}
}

func WithWSSubprotocols(protocols ...string) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.Subprotocols = protocols
	}
}

func WithWSUpgradeHeaders(header http.Header) WebSocketOption {
	return func(c *wsConfig) {
		c.responseHeader = header
	}
}

func WithWSOnConnect(fn func(context.Context, *websocket.Conn) error) WebSocketOption {
	return func(c *wsConfig) {
		c.onConnect = fn
	}
}

func WithWSOnDisconnect(fn func(context.Context, *websocket.Conn)) WebSocketOption {
	return func(c *wsConfig) {
		c.onDisconnect = fn
	}
}

func WithWSErrorHandler(fn func(context.Context, error)) WebSocketOption {
	return func(c *wsConfig) {
		c.onError = fn
	}
}

// WithWSTextMessages sends body chunks as text frames instead of binary ones.
func WithWSTextMessages() WebSocketOption {
	return func(c *wsConfig) {
		c.messageType = websocket.TextMessage
	}
}

// WithWSWriteTimeout bounds each frame write. Expiry aborts the body.
func WithWSWriteTimeout(d time.Duration) WebSocketOption {
	return func(c *wsConfig) {
		c.writeTimeout = d
	}
}

// WithWSBodyOptions passes options to the body.Response of WebSocketBody.
func WithWSBodyOptions(opts ...body.Option) WebSocketOption {
	return func(c *wsConfig) {
		c.bodyOpts = append(c.bodyOpts, opts...)
	}
}

func newWSConfig(opts []WebSocketOption) *wsConfig {
	cfg := &wsConfig{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		messageType: websocket.BinaryMessage,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WebSocket upgrades the connection and runs messageHandler on it. Errors
// after the upgrade go to the error handler, since no HTTP status can be
// written anymore.
func WebSocket(messageHandler func(context.Context, *websocket.Conn) error, opts ...WebSocketOption) handler.Response {
	cfg := newWSConfig(opts)
	return cfg.handle(messageHandler)
}

func (cfg *wsConfig) handle(messageHandler func(context.Context, *websocket.Conn) error) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		conn, err := cfg.upgrader.Upgrade(w, r, cfg.responseHeader)
		if err != nil {
			if cfg.onError != nil {
				cfg.onError(r.Context(), err)
			}
			return nil
		}
		defer func() {
			_ = conn.Close()
			if cfg.onDisconnect != nil {
				cfg.onDisconnect(r.Context(), conn)
			}
		}()

		if cfg.onConnect != nil {
			if err := cfg.onConnect(r.Context(), conn); err != nil {
				if cfg.onError != nil {
					cfg.onError(r.Context(), err)
				}
				return nil
			}
		}

		if err := messageHandler(r.Context(), conn); err != nil {
			if cfg.onError != nil {
				cfg.onError(r.Context(), err)
			}
		}
		return nil
	}
}

// WebSocketBody upgrades the connection and forwards the body assigned by
// build as a sequence of frames, one per chunk. A normal close frame ends a
// completed body; a peer that closes or drops the connection aborts it.
func WebSocketBody(build func(resp *body.Response) error, opts ...WebSocketOption) handler.Response {
	cfg := newWSConfig(opts)

	return cfg.handle(func(ctx context.Context, conn *websocket.Conn) error {
		sink := NewWSSink(ctx, conn, cfg.messageType, cfg.writeTimeout)
		defer sink.Abort()

		resp, err := body.New(sink, cfg.bodyOpts...)
		if err != nil {
			return err
		}
		defer resp.Close()

		if build != nil {
			if err := build(resp); err != nil {
				sink.Close(websocket.CloseInternalServerErr, "")
				return err
			}
		}

		err = resp.Send(ctx)
		switch {
		case err == nil:
			sink.Close(websocket.CloseNormalClosure, "")
			return nil
		case errors.Is(err, body.ErrSinkAborted):
			return nil
		default:
			sink.Close(websocket.CloseInternalServerErr, "")
			return err
		}
	})
}

// WSSink writes body chunks as websocket frames. It keeps reading from the
// connection to process control frames; a read failure means the peer is
// gone and aborts the sink.
type WSSink struct {
	conn         *websocket.Conn
	messageType  int
	writeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewWSSink starts reading from conn. ctx bounds the sink's lifetime.
func NewWSSink(ctx context.Context, conn *websocket.Conn, messageType int, writeTimeout time.Duration) *WSSink {
	ctx, cancel := context.WithCancel(ctx)
	s := &WSSink{
		conn:         conn,
		messageType:  messageType,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	go s.readLoop()
	return s
}

func (s *WSSink) readLoop() {
	defer s.cancel()
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			return
		}
	}
}

func (s *WSSink) Write(ctx context.Context, chunk []byte) error {
	if s.Closed() {
		return body.ErrSinkAborted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteMessage(s.messageType, chunk); err != nil {
		// A broken connection cannot be written to again.
		s.cancel()
		return err
	}
	return nil
}

func (s *WSSink) OnAbort(fn func()) func() bool {
	return context.AfterFunc(s.ctx, fn)
}

func (s *WSSink) Closed() bool {
	return s.ctx.Err() != nil
}

// Abort marks the sink closed without notifying the peer.
func (s *WSSink) Abort() {
	s.cancel()
}

// Close sends a close frame with the given code.
func (s *WSSink) Close(code int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(time.Second))
}
