package client

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenchat/zenchat/pkg/server"
)

// logBuffer collects client output for inspection from the test goroutine.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *logBuffer) Contains(s string) bool {
	return strings.Contains(b.String(), s)
}

func startChatServer(t *testing.T) *server.Server {
	t.Helper()

	cfg := server.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.TransferAddr = "127.0.0.1:0"
	cfg.PingGrace = time.Hour
	cfg.ProbeTimeout = time.Hour
	cfg.ProbeInterval = 2 * time.Hour

	srv := server.New(cfg)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func dialClient(t *testing.T, srv *server.Server, name string) (*Client, *logBuffer) {
	t.Helper()

	out := &logBuffer{}
	c, err := Dial(&Config{
		Addr:         srv.Addr().String(),
		TransferAddr: srv.TransferAddr().String(),
		DownloadDir:  t.TempDir(),
		Output:       out,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	require.NoError(t, c.Login(name))
	waitFor(t, name+" logged in", func() bool { return srv.Registry().Contains(name) })
	return c, out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLoginAndBroadcast(t *testing.T) {
	srv := startChatServer(t)

	alice, aliceOut := dialClient(t, srv, "alice")
	_, bobOut := dialClient(t, srv, "bob")

	waitFor(t, "join notice", func() bool { return aliceOut.Contains("bob has joined") })

	require.NoError(t, alice.Broadcast("hello everyone"))
	waitFor(t, "broadcast delivery", func() bool { return bobOut.Contains("alice: hello everyone") })
	waitFor(t, "broadcast ack", func() bool { return aliceOut.Contains("Message has been sent successfully") })
}

func TestLogoutClosesClient(t *testing.T) {
	srv := startChatServer(t)

	alice, out := dialClient(t, srv, "alice")
	require.NoError(t, alice.Logout())

	select {
	case <-alice.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("client did not shut down after logout")
	}
	assert.True(t, out.Contains("Bye bye"))
}

func TestEncryptedMessagingHandshake(t *testing.T) {
	srv := startChatServer(t)

	alice, aliceOut := dialClient(t, srv, "alice")
	bob, bobOut := dialClient(t, srv, "bob")

	// No key yet: the public key goes out first and the plaintext is held
	// back until the wrapped session key returns.
	require.NoError(t, alice.SendEncrypted("bob", "the eagle lands at midnight"))

	waitFor(t, "message delivery", func() bool {
		return bobOut.Contains("Encrypted whisper from alice: the eagle lands at midnight")
	})
	assert.True(t, alice.HasSessionKey("bob"))
	assert.True(t, bob.HasSessionKey("alice"))

	// With the key established the reply goes straight out.
	require.NoError(t, bob.SendEncrypted("alice", "roger that"))
	waitFor(t, "reply delivery", func() bool {
		return aliceOut.Contains("Encrypted whisper from bob: roger that")
	})
}

func TestEncryptedStateClearedWhenPeerLeaves(t *testing.T) {
	srv := startChatServer(t)

	alice, aliceOut := dialClient(t, srv, "alice")
	bob, bobOut := dialClient(t, srv, "bob")

	require.NoError(t, alice.SendEncrypted("bob", "psst"))
	waitFor(t, "message delivery", func() bool { return bobOut.Contains("Encrypted whisper") })

	require.NoError(t, bob.Logout())
	waitFor(t, "left notice", func() bool { return aliceOut.Contains("bob has left") })

	assert.False(t, alice.HasSessionKey("bob"))
}
