package feed

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/goldearn/hft-core/internal/wire"
)

func TestSessionConnectAndReceive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello"))
		time.Sleep(50 * time.Millisecond)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	codec := wire.NewCodec(wire.Handlers{}, nil, nil)

	var states []State
	s := New(Config{Host: addr.IP.String(), Port: addr.Port, RecvTimeout: 100 * time.Millisecond}, codec, nil, func(from, to State, reason string) {
		states = append(states, to)
	})
	defer s.Close()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if s.State() != StateConnected {
		t.Fatalf("state = %v, want connected", s.State())
	}

	<-done
	time.Sleep(150 * time.Millisecond)
	if got := s.bytesReceived.Load(); got != 5 {
		t.Fatalf("bytes received = %d, want 5", got)
	}
}

func TestConnectionLimiter(t *testing.T) {
	l := NewConnectionLimiter(2, time.Minute)
	if !l.Allow() {
		t.Fatalf("first attempt should be allowed")
	}
	if !l.Allow() {
		t.Fatalf("second attempt should be allowed")
	}
	if l.Allow() {
		t.Fatalf("third attempt within the window should be rejected")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateDisconnected:  "disconnected",
		StateConnecting:    "connecting",
		StateConnected:     "connected",
		StateReconnecting:  "reconnecting",
		StateError:         "error",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
