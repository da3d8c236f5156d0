package server

import (
	"log"
	"net"
	"time"
)

// Config holds server configuration.
type Config struct {
	// Addr is the chat protocol listen address.
	Addr string
	// TransferAddr is the file-transfer rendezvous listen address.
	TransferAddr string

	// WelcomeMessage is sent to every new connection.
	WelcomeMessage string

	// PingGrace is how long after login the first probe waits.
	PingGrace time.Duration
	// ProbeTimeout is how long a PONG may take before the connection is
	// declared dead.
	ProbeTimeout time.Duration
	// ProbeInterval is the time between probes.
	ProbeInterval time.Duration

	// SetupWindow is the number game's join countdown.
	SetupWindow time.Duration
	// RoundTimeout caps a running round.
	RoundTimeout time.Duration
	// FixedSecret pins the game secret to a known value for deterministic
	// play; 0 draws a random secret per round.
	FixedSecret int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":1337",
		TransferAddr:   ":1338",
		WelcomeMessage: "Welcome to the zenchat server",
		PingGrace:      10 * time.Second,
		ProbeTimeout:   3 * time.Second,
		ProbeInterval:  10 * time.Second,
		SetupWindow:    10 * time.Second,
		RoundTimeout:   2 * time.Minute,
	}
}

// Server owns the chat listener, the session registry, the shared number
// game and the rendezvous endpoint. One handler goroutine runs per accepted
// connection; handlers only share state through the registry and the game.
type Server struct {
	cfg        *Config
	registry   *Registry
	game       *NumberGame
	rendezvous *Rendezvous

	listener  net.Listener
	startTime time.Time
}

// New creates a server from the given configuration.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &Server{
		cfg:        cfg,
		registry:   NewRegistry(),
		game:       NewNumberGame(cfg.SetupWindow, cfg.RoundTimeout, cfg.FixedSecret),
		rendezvous: NewRendezvous(),
		startTime:  time.Now(),
	}
}

// Start begins listening on the chat and transfer addresses.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = listener

	if err := s.rendezvous.Start(s.cfg.TransferAddr); err != nil {
		listener.Close()
		return err
	}

	log.Printf("Chat server listening on %s", listener.Addr())

	go s.acceptLoop()
	return nil
}

// Stop closes both listeners. Established connections run until their peers
// disconnect.
func (s *Server) Stop() error {
	if s.listener != nil {
		s.listener.Close()
	}
	return s.rendezvous.Stop()
}

// Addr returns the bound chat listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// TransferAddr returns the bound rendezvous listener address.
func (s *Server) TransferAddr() net.Addr {
	return s.rendezvous.Addr()
}

// Registry returns the session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Game returns the number game engine.
func (s *Server) Game() *NumberGame {
	return s.game
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		go newHandler(s, conn).run()
	}
}
