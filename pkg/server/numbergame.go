package server

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/zenchat/zenchat/pkg/protocol"
)

// GamePhase is the number game's lifecycle phase.
type GamePhase int

const (
	GameIdle GamePhase = iota
	GameSetup
	GameRunning
)

func (p GamePhase) String() string {
	switch p {
	case GameSetup:
		return "setup"
	case GameRunning:
		return "running"
	default:
		return "idle"
	}
}

// NumberGame is the process-wide number-guessing game. One round runs at a
// time: a setup window collects participants, then everyone races to guess
// the secret. All phase checks and mutations are serialized under one
// mutex; timers submit transitions tagged with the round generation they
// were armed for, so a stale timer firing after the round has already ended
// is a no-op.
type NumberGame struct {
	setupWindow  time.Duration
	roundTimeout time.Duration
	fixedSecret  int

	mu           sync.Mutex
	phase        GamePhase
	participants map[string]*Session
	results      []protocol.GameResult
	secret       int
	roundStart   time.Time
	timer        *time.Timer
	round        int
}

// NewNumberGame creates the game engine. fixedSecret of 0 means each round
// draws a random secret between 1 and 50.
func NewNumberGame(setupWindow, roundTimeout time.Duration, fixedSecret int) *NumberGame {
	return &NumberGame{
		setupWindow:  setupWindow,
		roundTimeout: roundTimeout,
		fixedSecret:  fixedSecret,
		participants: make(map[string]*Session),
	}
}

// Phase returns the current phase.
func (g *NumberGame) Phase() GamePhase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Setup opens a new round with the requester as first participant and arms
// the setup countdown. It returns a protocol error code, or 0 on success.
func (g *NumberGame) Setup(username string, sess *Session) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != GameIdle {
		return protocol.CodeGameSetUp
	}

	g.phase = GameSetup
	g.participants[fold(username)] = sess

	round := g.round
	g.timer = time.AfterFunc(g.setupWindow, func() { g.startRound(round) })
	return 0
}

// Join adds a participant during the setup window. It returns a protocol
// error code, or 0 on success.
func (g *NumberGame) Join(username string, sess *Session) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.phase == GameRunning:
		return protocol.CodeGameRunning
	case g.phase == GameIdle:
		return protocol.CodeNoGame
	}
	if _, joined := g.participants[fold(username)]; joined {
		return protocol.CodeAlreadyJoined
	}

	g.participants[fold(username)] = sess
	return 0
}

// CheckGuess validates that username may guess right now, without consuming
// anything. It returns a protocol error code, or 0 when a guess is allowed.
func (g *NumberGame) CheckGuess(username string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkGuessLocked(username)
}

func (g *NumberGame) checkGuessLocked(username string) int {
	if g.phase != GameRunning {
		return protocol.CodeNoGame
	}
	if _, joined := g.participants[fold(username)]; !joined {
		return protocol.CodeNotParticipant
	}
	if g.hasResult(username) {
		return protocol.CodeAlreadyGuessed
	}
	return 0
}

// Guess processes one guess. On success errCode is 0 and result is the
// too-low/correct/too-high code; otherwise errCode is the protocol error.
// A correct guess records the elapsed time; once every participant has a
// result the round ends immediately.
func (g *NumberGame) Guess(username string, guess int) (result, errCode int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if errCode := g.checkGuessLocked(username); errCode != 0 {
		return 0, errCode
	}

	switch {
	case guess < g.secret:
		return protocol.GuessTooLow, 0
	case guess > g.secret:
		return protocol.GuessTooHigh, 0
	}

	g.results = append(g.results, protocol.GameResult{
		Username: username,
		MS:       time.Since(g.roundStart).Milliseconds(),
	})
	if len(g.results) == len(g.participants) {
		g.finishLocked()
	}
	return protocol.GuessCorrect, 0
}

// startRound is the setup-countdown transition: with enough participants
// the round starts, otherwise it is cancelled.
func (g *NumberGame) startRound(round int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.round != round || g.phase != GameSetup {
		return
	}

	if len(g.participants) <= 1 {
		for _, sess := range g.participants {
			sess.Send(protocol.CmdNumberCancel, nil)
		}
		g.resetLocked()
		log.Println("Number game cancelled: not enough participants")
		return
	}

	g.phase = GameRunning
	if g.fixedSecret > 0 {
		g.secret = g.fixedSecret
	} else {
		g.secret = rand.Intn(50) + 1
	}
	g.roundStart = time.Now()

	for _, sess := range g.participants {
		sess.Send(protocol.CmdNumberStart, nil)
	}

	g.timer = time.AfterFunc(g.roundTimeout, func() { g.endRound(round) })
	log.Printf("Number game started with %d participants", len(g.participants))
}

// endRound is the round-timeout transition. The generation check makes it
// mutually exclusive with the all-guessed path in Guess: only one of them
// broadcasts results and resets.
func (g *NumberGame) endRound(round int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.round != round || g.phase != GameRunning {
		return
	}
	g.finishLocked()
}

func (g *NumberGame) finishLocked() {
	body := protocol.NumberResults{Results: g.results}
	if body.Results == nil {
		body.Results = []protocol.GameResult{}
	}
	for _, sess := range g.participants {
		sess.Send(protocol.CmdNumberResult, body)
	}
	g.resetLocked()
}

func (g *NumberGame) resetLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.participants = make(map[string]*Session)
	g.results = nil
	g.phase = GameIdle
	g.round++
}

func (g *NumberGame) hasResult(username string) bool {
	for _, r := range g.results {
		if fold(r.Username) == fold(username) {
			return true
		}
	}
	return false
}
