package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/zenchat/zenchat/pkg/crypto"
	"github.com/zenchat/zenchat/pkg/protocol"
)

// ErrChecksumMismatch is returned when a received file's digest does not
// match the one declared in the transfer request. The file is deleted; the
// transfer is not retried.
var ErrChecksumMismatch = errors.New("file checksum mismatch")

type pendingSend struct {
	id   string
	path string
}

type pendingReceive struct {
	id       string
	checksum string
	filename string
}

// transferManager tracks the client side of file transfers: at most one
// pending send and one pending receive per peer, and the workers that dial
// the server's rendezvous endpoint once a transfer is agreed.
type transferManager struct {
	addr   string
	dir    string
	output io.Writer

	mu    sync.Mutex
	sends map[string]pendingSend
	recvs map[string]pendingReceive
}

func newTransferManager(addr, dir string, output io.Writer) *transferManager {
	return &transferManager{
		addr:   addr,
		dir:    dir,
		output: output,
		sends:  make(map[string]pendingSend),
		recvs:  make(map[string]pendingReceive),
	}
}

// offer records a pending send to peer and builds the transfer request,
// with a freshly drawn rendezvous token and the file's checksum.
func (m *transferManager) offer(peer, path string) (protocol.FileTransferRequest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return protocol.FileTransferRequest{}, err
	}

	checksum, err := crypto.ChecksumFile(path)
	if err != nil {
		return protocol.FileTransferRequest{}, err
	}

	id := uuid.NewString()

	m.mu.Lock()
	m.sends[fold(peer)] = pendingSend{id: id, path: path}
	m.mu.Unlock()

	return protocol.FileTransferRequest{
		Username: peer,
		Filename: filepath.Base(path),
		Filesize: info.Size(),
		ID:       id,
		Checksum: checksum,
	}, nil
}

func (m *transferManager) addReceive(peer, id, checksum, filename string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recvs[fold(peer)] = pendingReceive{id: id, checksum: checksum, filename: filename}
}

func (m *transferManager) hasReceive(peer string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.recvs[fold(peer)]
	return ok
}

func (m *transferManager) dropSend(peer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sends, fold(peer))
}

func (m *transferManager) dropReceive(peer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.recvs, fold(peer))
}

// dropPeer clears all pending transfer state for a departed peer.
func (m *transferManager) dropPeer(peer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sends, fold(peer))
	delete(m.recvs, fold(peer))
}

// sendFile is the writer-role worker: it dials the rendezvous endpoint,
// presents 'w' plus the token, and streams the file.
func (m *transferManager) sendFile(peer string) error {
	m.mu.Lock()
	pending, ok := m.sends[fold(peer)]
	delete(m.sends, fold(peer))
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending file send to %s", peer)
	}

	f, err := os.Open(pending.path)
	if err != nil {
		return err
	}
	defer f.Close()

	conn, err := net.Dial("tcp", m.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(append([]byte{protocol.RoleWriter}, pending.id...)); err != nil {
		return err
	}

	fmt.Fprintln(m.output, "Started transferring file.")
	if _, err := io.Copy(conn, f); err != nil {
		return err
	}

	fmt.Fprintln(m.output, "Finished transferring file.")
	return nil
}

// receiveFile is the reader-role worker: it dials the rendezvous endpoint,
// presents 'r' plus the token, streams the incoming bytes to disk, and
// verifies the checksum. A mismatched file is deleted.
func (m *transferManager) receiveFile(peer string) error {
	m.mu.Lock()
	pending, ok := m.recvs[fold(peer)]
	delete(m.recvs, fold(peer))
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending file receive from %s", peer)
	}

	path := filepath.Join(m.dir, filepath.Base(pending.filename))
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	conn, err := net.Dial("tcp", m.addr)
	if err != nil {
		f.Close()
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(append([]byte{protocol.RoleReader}, pending.id...)); err != nil {
		f.Close()
		return err
	}

	fmt.Fprintln(m.output, "Started receiving file.")
	_, copyErr := io.Copy(f, conn)
	f.Close()
	if copyErr != nil {
		return copyErr
	}

	checksum, err := crypto.ChecksumFile(path)
	if err != nil {
		return err
	}
	if checksum != pending.checksum {
		os.Remove(path)
		fmt.Fprintln(m.output, "File checksums do not match, deleting file.")
		return ErrChecksumMismatch
	}

	fmt.Fprintln(m.output, "Checksums match, file successfully received.")
	return nil
}
