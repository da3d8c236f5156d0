package server

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/zenchat/zenchat/pkg/protocol"
)

// liveness is the per-connection ping/pong state machine. After login it
// waits a grace period, then probes the peer once per interval: a PING is
// sent, and if no PONG arrives within the probe timeout the connection is
// declared dead, told so with DSCN, and closed. Closing the socket unblocks
// the handler's read loop, so no further commands are processed.
type liveness struct {
	conn net.Conn
	out  *lineWriter

	grace    time.Duration
	timeout  time.Duration
	interval time.Duration

	mu        sync.Mutex
	connected bool
	awaiting  bool
	started   bool
}

func newLiveness(conn net.Conn, out *lineWriter, cfg *Config) *liveness {
	return &liveness{
		conn:      conn,
		out:       out,
		grace:     cfg.PingGrace,
		timeout:   cfg.ProbeTimeout,
		interval:  cfg.ProbeInterval,
		connected: true,
	}
}

// Connected reports whether the connection is still considered alive.
func (l *liveness) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Disconnect marks the connection dead and closes the socket. The first
// caller wins; later calls are no-ops.
func (l *liveness) Disconnect() {
	l.mu.Lock()
	if !l.connected {
		l.mu.Unlock()
		return
	}
	l.connected = false
	l.mu.Unlock()

	l.conn.Close()
}

// AckProbe consumes an outstanding probe. It returns false when no probe
// was outstanding, which the handler surfaces as PONG_ERROR.
func (l *liveness) AckProbe() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.awaiting {
		return false
	}
	l.awaiting = false
	return true
}

func (l *liveness) arm() {
	l.mu.Lock()
	l.awaiting = true
	l.mu.Unlock()
}

func (l *liveness) stillAwaiting() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.awaiting
}

// Start launches the probe loop. It runs once per connection; a second call
// is a no-op.
func (l *liveness) Start() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	go l.loop()
}

func (l *liveness) loop() {
	time.Sleep(l.grace)

	for l.Connected() {
		l.arm()
		if err := l.out.SendLine(protocol.CmdPing); err != nil {
			l.Disconnect()
			return
		}

		time.Sleep(l.timeout)

		if l.stillAwaiting() {
			log.Printf("Connection %s missed ping deadline, disconnecting", l.conn.RemoteAddr())
			l.out.Send(protocol.CmdDisconnect, protocol.Code{Code: protocol.CodeTimedOut})
			l.Disconnect()
			return
		}

		time.Sleep(l.interval - l.timeout)
	}
}
