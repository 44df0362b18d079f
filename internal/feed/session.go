// Package feed establishes and maintains a single TCP connection to an
// exchange feed, delivers received bytes to the wire codec, and drives
// reconnection (spec §4.2). Grounded on the teacher's
// internal/trading/connectivity and internal/exchange/connectors
// constructor/lifecycle shape: context+cancel, a state-change
// callback, and a background goroutine selecting on ctx.Done().
package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goldearn/hft-core/internal/metrics"
	"github.com/goldearn/hft-core/internal/wire"
	"go.uber.org/zap"
)

// State is the feed session's connection lifecycle state (spec §4.2).
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Config configures a Session's socket options, reconnect policy, and
// optional TLS posture.
type Config struct {
	Host string
	Port int

	// RecvBufferBytes sets SO_RCVBUF; spec §4.2 requires >= 1 MB.
	RecvBufferBytes int

	ConnectTimeout time.Duration // spec §4.2: 5s select timeout on connect
	RecvTimeout    time.Duration // spec §4.2: 1s select timeout per receive

	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	ReconnectMultiplier float64
	MaxReconnectAttempts int

	HeartbeatInterval time.Duration

	TLS *TLSConfig // nil disables TLS
}

func (c Config) withDefaults() Config {
	if c.RecvBufferBytes <= 0 {
		c.RecvBufferBytes = 1 << 20
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.RecvTimeout <= 0 {
		c.RecvTimeout = 1 * time.Second
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = 500 * time.Millisecond
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.ReconnectMultiplier <= 1 {
		c.ReconnectMultiplier = 2
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 20
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	return c
}

// StateChangeFunc is notified on every lifecycle transition, with a
// human-readable reason (spec §4.2, §7 "Connection state transitions
// notify a registered callback with a reason string").
type StateChangeFunc func(from, to State, reason string)

// Session owns one TCP connection to an exchange feed and the codec
// fed by its receiver loop.
type Session struct {
	cfg    Config
	codec  *wire.Codec
	logger *zap.Logger

	connLimiter *ConnectionLimiter
	breaker     *Breaker

	onStateChange StateChangeFunc

	state       int32 // State, atomic
	conn        net.Conn
	lastActivity atomic.Int64 // unix nanos

	reconnectAttempts int

	shutdown chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex

	bytesReceived *metrics.Counter
	marketDataGap *metrics.Counter

	lastSequence uint32
	haveSequence bool
}

// New creates a Session that will deliver bytes to codec over cfg.
func New(cfg Config, codec *wire.Codec, logger *zap.Logger, onStateChange StateChangeFunc) *Session {
	return &Session{
		cfg:           cfg.withDefaults(),
		codec:         codec,
		logger:        logger,
		connLimiter:   NewConnectionLimiter(10, time.Minute),
		breaker:       NewBreaker("feed-session"),
		onStateChange: onStateChange,
		shutdown:      make(chan struct{}),
		bytesReceived: metrics.NewCounter("feed_bytes_received_total", "bytes received from the exchange feed socket"),
		marketDataGap: metrics.NewCounter("feed_market_data_gap_total", "sequence-number gaps observed in the feed"),
	}
}

func (s *Session) setState(to State, reason string) {
	from := State(atomic.SwapInt32(&s.state, int32(to)))
	if from == to {
		return
	}
	if s.onStateChange != nil {
		s.onStateChange(from, to, reason)
	}
	if s.logger != nil {
		s.logger.Info("feed: state transition", zap.String("from", from.String()), zap.String("to", to.String()), zap.String("reason", reason))
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return State(atomic.LoadInt32(&s.state)) }

// LastActivity returns the timestamp of the last received byte, for
// liveness checks (spec §4.2).
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Connect establishes the TCP connection (and optional TLS handshake),
// consulting the connection rate limiter first (spec §4.2).
func (s *Session) Connect(ctx context.Context) error {
	if !s.connLimiter.Allow() {
		return errors.New("feed: connection attempt rate-limited")
	}

	s.setState(StateConnecting, "connect requested")

	dialer := net.Dialer{Timeout: s.cfg.ConnectTimeout}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		s.setState(StateError, "dial failed: "+err.Error())
		return err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
		_ = tcpConn.SetReadBuffer(s.cfg.RecvBufferBytes)
	}

	if s.cfg.TLS != nil {
		tlsConn, err := handshake(dialCtx, conn, s.cfg.TLS, s.cfg.Host)
		if err != nil {
			conn.Close()
			s.setState(StateError, "tls handshake failed: "+err.Error())
			return err
		}
		conn = tlsConn
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.reconnectAttempts = 0
	s.lastActivity.Store(time.Now().UnixNano())
	s.setState(StateConnected, "connected")

	s.wg.Add(1)
	go s.receiveLoop()
	return nil
}

// receiveLoop reads from the socket with a 1s timeout per receive
// (spec §4.2), feeding bytes to the codec. EAGAIN/timeout continues;
// zero bytes or a fatal error exits and transitions to disconnected.
func (s *Session) receiveLoop() {
	defer s.wg.Done()

	buf := make([]byte, 64*1024)
	for {
		select {
		case <-s.shutdown:
			s.closeConn()
			return
		default:
		}

		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.RecvTimeout))
		n, err := conn.Read(buf)
		if n > 0 {
			s.lastActivity.Store(time.Now().UnixNano())
			s.bytesReceived.Add(uint64(n))
			s.codec.ParseBuffer(buf[:n])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue // select/recv timeout: keep polling
			}
			s.closeConn()
			s.setState(StateDisconnected, "recv error: "+err.Error())
			return
		}
		if n == 0 {
			s.closeConn()
			s.setState(StateDisconnected, "peer closed connection")
			return
		}
	}
}

func (s *Session) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Send writes bytes to the socket (heartbeats, outbound control
// messages). It is guarded by the transport breaker so a chronically
// failing socket trips and stops retrying inline.
func (s *Session) Send(data []byte) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return nil, errors.New("feed: not connected")
		}
		_, err := conn.Write(data)
		return nil, err
	})
	return err
}

// RunReconnectLoop drives reconnection with exponential backoff,
// capped at MaxReconnectAttempts (spec §4.2), until ctx is cancelled
// or Close is called.
func (s *Session) RunReconnectLoop(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	delay := s.cfg.ReconnectBaseDelay
	for {
		select {
		case <-s.shutdown:
			return
		case <-ctx.Done():
			return
		default:
		}

		if s.State() == StateConnected {
			time.Sleep(s.cfg.RecvTimeout)
			continue
		}

		if s.reconnectAttempts >= s.cfg.MaxReconnectAttempts {
			s.setState(StateError, "max reconnect attempts exceeded")
			return
		}

		s.setState(StateReconnecting, fmt.Sprintf("attempt %d", s.reconnectAttempts+1))
		_, err := s.breaker.Execute(func() (interface{}, error) {
			return nil, s.Connect(ctx)
		})
		if err != nil {
			s.reconnectAttempts++
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			case <-s.shutdown:
				return
			}
			delay = time.Duration(float64(delay) * s.cfg.ReconnectMultiplier)
			if delay > s.cfg.ReconnectMaxDelay {
				delay = s.cfg.ReconnectMaxDelay
			}
			continue
		}
		delay = s.cfg.ReconnectBaseDelay
	}
}

// Close signals shutdown, closes the socket, and joins all background
// goroutines (spec §5 "All long-running threads observe a shared
// shutdown flag and join on teardown").
func (s *Session) Close() {
	select {
	case <-s.shutdown:
		return // already closed
	default:
		close(s.shutdown)
	}
	s.closeConn()
	s.wg.Wait()
	s.setState(StateDisconnected, "closed")
}

// ObserveSequence reports a sequence-number gap as a market_data_gap
// counter (spec §4.1 "A sequence-number gap is reported ... by the
// consumer; the codec itself does not reorder").
func (s *Session) ObserveSequence(seq uint32) {
	if s.haveSequence && seq != s.lastSequence+1 {
		s.marketDataGap.Inc()
	}
	s.lastSequence = seq
	s.haveSequence = true
}
