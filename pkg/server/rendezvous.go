package server

import (
	"io"
	"log"
	"net"
	"sync"

	"github.com/zenchat/zenchat/pkg/protocol"
)

// Rendezvous is the side transport that pairs the two halves of a file
// transfer. Each connection announces a role byte ('r' or 'w') and a shared
// token; whichever side arrives first is parked until its counterpart shows
// up, then the writer's bytes are spliced straight into the reader's socket.
// The check-and-either-park-or-splice runs under one mutex so two sides
// arriving together cannot miss each other.
type Rendezvous struct {
	listener net.Listener

	mu      sync.Mutex
	readers map[string]net.Conn
	writers map[string]net.Conn
}

// NewRendezvous creates an empty rendezvous endpoint.
func NewRendezvous() *Rendezvous {
	return &Rendezvous{
		readers: make(map[string]net.Conn),
		writers: make(map[string]net.Conn),
	}
}

// Start listens on addr and begins accepting transfer connections.
func (r *Rendezvous) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	r.listener = listener
	log.Printf("File transfer endpoint listening on %s", listener.Addr())

	go r.acceptLoop()
	return nil
}

// Stop closes the listener.
func (r *Rendezvous) Stop() error {
	if r.listener != nil {
		return r.listener.Close()
	}
	return nil
}

// Addr returns the bound listener address.
func (r *Rendezvous) Addr() net.Addr {
	return r.listener.Addr()
}

func (r *Rendezvous) acceptLoop() {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return
		}

		go r.handleConn(conn)
	}
}

func (r *Rendezvous) handleConn(conn net.Conn) {
	preamble := make([]byte, 1+protocol.TokenLength)
	if _, err := io.ReadFull(conn, preamble); err != nil {
		conn.Close()
		return
	}

	role := preamble[0]
	token := string(preamble[1:])

	switch role {
	case protocol.RoleReader:
		r.mu.Lock()
		writer, ok := r.writers[token]
		if ok {
			delete(r.writers, token)
		} else {
			r.readers[token] = conn
		}
		r.mu.Unlock()

		if ok {
			go splice(conn, writer)
		}

	case protocol.RoleWriter:
		r.mu.Lock()
		reader, ok := r.readers[token]
		if ok {
			delete(r.readers, token)
		} else {
			r.writers[token] = conn
		}
		r.mu.Unlock()

		if ok {
			go splice(reader, conn)
		}

	default:
		log.Printf("Transfer connection with unknown role %q", role)
		conn.Close()
	}
}

// splice streams the writer-side bytes into the reader side and closes both
// ends when the writer finishes.
func splice(reader, writer net.Conn) {
	if _, err := io.Copy(reader, writer); err != nil {
		log.Printf("Transfer splice error: %v", err)
	}
	writer.Close()
	reader.Close()
}
