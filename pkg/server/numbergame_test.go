package server

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenchat/zenchat/pkg/protocol"
)

const testSecret = 20

func newTestGame(setupWindow, roundTimeout time.Duration) *NumberGame {
	return NewNumberGame(setupWindow, roundTimeout, testSecret)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (s *lineSink) has(prefix string) bool {
	for _, line := range s.Lines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func (s *lineSink) count(prefix string) int {
	n := 0
	for _, line := range s.Lines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

func TestGameSetupOnlyWhenIdle(t *testing.T) {
	g := newTestGame(time.Hour, time.Hour)
	alice, _ := newTestSession("alice")
	bob, _ := newTestSession("bob")

	assert.Equal(t, 0, g.Setup("alice", alice))
	assert.Equal(t, GameSetup, g.Phase())
	assert.Equal(t, protocol.CodeGameSetUp, g.Setup("bob", bob))
}

func TestGameJoinPhases(t *testing.T) {
	g := newTestGame(time.Hour, time.Hour)
	alice, _ := newTestSession("alice")
	bob, _ := newTestSession("bob")

	assert.Equal(t, protocol.CodeNoGame, g.Join("bob", bob))

	require.Equal(t, 0, g.Setup("alice", alice))
	assert.Equal(t, 0, g.Join("bob", bob))
	assert.Equal(t, protocol.CodeAlreadyJoined, g.Join("Bob", bob))
}

func TestGameCancelledWithoutEnoughParticipants(t *testing.T) {
	g := newTestGame(20*time.Millisecond, time.Hour)
	alice, sink := newTestSession("alice")

	require.Equal(t, 0, g.Setup("alice", alice))

	waitFor(t, "cancel notice", func() bool { return sink.has(protocol.CmdNumberCancel) })
	assert.Equal(t, GameIdle, g.Phase())

	// A fresh round can be set up after the cancel.
	assert.Equal(t, 0, g.Setup("alice", alice))
}

func TestGameRound(t *testing.T) {
	g := newTestGame(20*time.Millisecond, time.Hour)
	alice, aliceSink := newTestSession("alice")
	bob, bobSink := newTestSession("bob")

	require.Equal(t, 0, g.Setup("alice", alice))
	require.Equal(t, 0, g.Join("bob", bob))

	waitFor(t, "round start", func() bool { return bobSink.has(protocol.CmdNumberStart) })
	assert.True(t, aliceSink.has(protocol.CmdNumberStart))
	assert.Equal(t, GameRunning, g.Phase())

	// Joining a running round is rejected.
	carol, _ := newTestSession("carol")
	assert.Equal(t, protocol.CodeGameRunning, g.Join("carol", carol))

	result, code := g.Guess("alice", testSecret-5)
	assert.Equal(t, 0, code)
	assert.Equal(t, protocol.GuessTooLow, result)

	result, code = g.Guess("alice", testSecret+5)
	assert.Equal(t, 0, code)
	assert.Equal(t, protocol.GuessTooHigh, result)

	result, code = g.Guess("alice", testSecret)
	assert.Equal(t, 0, code)
	assert.Equal(t, protocol.GuessCorrect, result)

	_, code = g.Guess("alice", testSecret)
	assert.Equal(t, protocol.CodeAlreadyGuessed, code)

	// Bob's correct guess completes the round for everyone.
	result, code = g.Guess("bob", testSecret)
	assert.Equal(t, 0, code)
	assert.Equal(t, protocol.GuessCorrect, result)

	waitFor(t, "results", func() bool { return aliceSink.has(protocol.CmdNumberResult) })
	assert.True(t, bobSink.has(protocol.CmdNumberResult))
	assert.Equal(t, GameIdle, g.Phase())
}

func TestGameGuessValidation(t *testing.T) {
	g := newTestGame(20*time.Millisecond, time.Hour)
	alice, _ := newTestSession("alice")
	bob, bobSink := newTestSession("bob")

	assert.Equal(t, protocol.CodeNoGame, g.CheckGuess("alice"))

	require.Equal(t, 0, g.Setup("alice", alice))
	require.Equal(t, 0, g.Join("bob", bob))
	waitFor(t, "round start", func() bool { return bobSink.has(protocol.CmdNumberStart) })

	_, code := g.Guess("carol", testSecret)
	assert.Equal(t, protocol.CodeNotParticipant, code)
}

func TestGameRoundTimeoutDeliversPartialResults(t *testing.T) {
	g := newTestGame(20*time.Millisecond, 100*time.Millisecond)
	alice, aliceSink := newTestSession("alice")
	bob, bobSink := newTestSession("bob")

	require.Equal(t, 0, g.Setup("alice", alice))
	require.Equal(t, 0, g.Join("bob", bob))
	waitFor(t, "round start", func() bool { return aliceSink.has(protocol.CmdNumberStart) })

	result, code := g.Guess("alice", testSecret)
	require.Equal(t, 0, code)
	require.Equal(t, protocol.GuessCorrect, result)

	// Bob never guesses; the round timeout ends the game with alice's
	// result alone.
	waitFor(t, "results", func() bool { return bobSink.has(protocol.CmdNumberResult) })

	var results protocol.NumberResults
	for _, line := range bobSink.Lines() {
		cmd, body := protocol.Decode(line)
		if cmd == protocol.CmdNumberResult {
			require.NoError(t, protocol.Unmarshal(body, &results))
		}
	}
	require.Len(t, results.Results, 1)
	assert.Equal(t, "alice", results.Results[0].Username)
	assert.GreaterOrEqual(t, results.Results[0].MS, int64(0))
	assert.Equal(t, GameIdle, g.Phase())
}

func TestGameStaleTimerDoesNotFireTwice(t *testing.T) {
	g := newTestGame(20*time.Millisecond, 80*time.Millisecond)
	alice, aliceSink := newTestSession("alice")
	bob, bobSink := newTestSession("bob")

	require.Equal(t, 0, g.Setup("alice", alice))
	require.Equal(t, 0, g.Join("bob", bob))
	waitFor(t, "round start", func() bool { return aliceSink.has(protocol.CmdNumberStart) })

	// Both guess correctly, ending the round before its timeout.
	_, code := g.Guess("alice", testSecret)
	require.Equal(t, 0, code)
	_, code = g.Guess("bob", testSecret)
	require.Equal(t, 0, code)

	waitFor(t, "results", func() bool { return bobSink.has(protocol.CmdNumberResult) })

	// Let the original round timeout elapse; it must not produce a second
	// result broadcast.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, aliceSink.count(protocol.CmdNumberResult))
	assert.Equal(t, 1, bobSink.count(protocol.CmdNumberResult))
}
