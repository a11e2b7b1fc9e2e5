package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DoyleJ11/raffle-backend/internal/engine"
	"github.com/DoyleJ11/raffle-backend/internal/history"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("session closed")

// ErrInternalCommand rejects commands that only the reveal clock may issue.
var ErrInternalCommand = fmt.Errorf("%w: issued by the reveal clock only", engine.ErrUnsupportedCommand)

type Msg interface{ isSessionMsg() }

// FromClient carries a command from a client. Reply, when set, receives
// exactly one value: nil or the rejection error.
type FromClient struct {
	Cmd   engine.Command
	Reply chan error
}

func (FromClient) isSessionMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isSessionMsg() {}

type Leave struct{ ClientID string }

func (Leave) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type tickKind int

const (
	tickFlicker tickKind = iota
	tickReveal
	tickSettle
)

// revealTick is posted by reveal timers; gen ties it to the draw that armed it.
type revealTick struct {
	gen  int
	kind tickKind
}

func (revealTick) isSessionMsg() {}

// Snapshot is what clients receive. Display is the name currently on
// screen while a draw is being revealed; frames that only change Display
// keep the same Version and are marked DisplayOnly.
type Snapshot struct {
	Version     int
	State       engine.State
	Display     string
	DisplayOnly bool
}

type View struct {
	Code       string
	Version    int
	NumClients int
	State      engine.State
	Display    string
}

// Pacing controls the reveal: a flicker frame every Flicker, one winner
// announced every Reveal, and Settle after the last one before results.
type Pacing struct {
	Flicker time.Duration
	Reveal  time.Duration
	Settle  time.Duration
}

func DefaultPacing() Pacing {
	return Pacing{
		Flicker: 75 * time.Millisecond,
		Reveal:  3 * time.Second,
		Settle:  2 * time.Second,
	}
}

type Config struct {
	Code    string
	Pacing  Pacing
	Rand    engine.Rand
	History history.Store
	Logger  *zap.Logger
}

type Session struct {
	code    string
	inbox   chan Msg
	state   engine.State
	version int
	display string
	clients map[string]chan Snapshot
	ctx     context.Context
	cancel  context.CancelFunc

	pacing  Pacing
	rng     engine.Rand
	history history.Store
	log     *zap.Logger

	gen          int
	flickerTimer *time.Timer
	stepTimer    *time.Timer // next reveal or settle
	drawSeq      int
}

func NewSession(parent context.Context, cfg Config) (*Session, error) {
	rng := cfg.Rand
	if rng == nil {
		r, err := engine.NewRand()
		if err != nil {
			return nil, err
		}
		rng = r
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		code:    cfg.Code,
		inbox:   make(chan Msg, 64), // Small buffer
		state:   engine.NewEmptyState(),
		clients: make(map[string]chan Snapshot),
		ctx:     ctx,
		cancel:  cancel,
		pacing:  cfg.Pacing,
		rng:     rng,
		history: cfg.History,
		log:     log.With(zap.String("session", cfg.Code)),
	}

	go s.loop()
	return s, nil
}

// Expose the inbox so tests or WS layer can send messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) Code() string { return s.code }

// Done is closed when the session starts shutting down.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Do sends cmd and waits for the session to accept or reject it.
func (s *Session) Do(ctx context.Context, cmd engine.Command) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, FromClient{Cmd: cmd, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrClosed
	}
}

// View returns the current state without racing the loop.
func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.ctx.Done():
		return View{}, ErrClosed
	}
}

func (s *Session) send(ctx context.Context, m Msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrClosed
	}
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				s.clients[msg.ClientID] = msg.Outbox
				s.sendTo(msg.ClientID, msg.Outbox, s.snapshot())

			case Leave:
				delete(s.clients, msg.ClientID)

			case FromClient:
				var err error
				switch msg.Cmd.Type {
				case engine.CmdRevealNext, engine.CmdFinishDraw:
					err = ErrInternalCommand
				default:
					err = s.apply(msg.Cmd)
				}
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case revealTick:
				s.onTick(msg)

			case GetState:
				msg.Reply <- View{
					Code:       s.code,
					Version:    s.version,
					NumClients: len(s.clients),
					State:      s.state,
					Display:    s.display,
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

// apply runs cmd through the engine and, on success, publishes the result.
func (s *Session) apply(cmd engine.Command) error {
	prev := s.state
	events, newState, err := engine.Apply(s.state, cmd, s.rng)
	if err != nil {
		s.log.Debug("command rejected", zap.String("cmd", string(cmd.Type)), zap.Error(err))
		return err
	}

	s.state = newState
	s.version++

	for _, evt := range events {
		s.onEvent(prev, evt)
	}
	s.broadcast(s.snapshot())
	return nil
}

func (s *Session) onEvent(prev engine.State, evt engine.Event) {
	switch evt.Type {
	case engine.EvtRosterLoaded:
		s.log.Info("roster loaded", zap.Int("participants", len(evt.Participants)))

	case engine.EvtDrawStarted:
		s.log.Info("draw started", zap.Int("count", evt.Count), zap.Int("pool", len(prev.Pool)))
		s.display = ""
		s.startReveal()

	case engine.EvtWinnerRevealed:
		s.display = evt.Participants[0].Name

	case engine.EvtDrawCompleted:
		s.stopReveal()
		s.display = ""
		s.drawSeq++
		s.record(history.NewRecord(s.code, s.drawSeq, len(prev.Pool), evt.Participants, time.Now()))

	case engine.EvtPoolExhausted:
		s.log.Info("pool exhausted")

	case engine.EvtDrawReopened:
		s.display = ""

	case engine.EvtSessionReset:
		s.log.Info("session reset", zap.Bool("keep_roster", evt.KeepRoster))
		s.stopReveal()
		s.display = ""
	}
}

func (s *Session) record(rec history.Record) {
	s.log.Info("draw completed", zap.Int("sequence", rec.Sequence), zap.Int("winners", len(rec.Winners)))
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 3*time.Second)
	defer cancel()
	if err := s.history.Append(ctx, rec); err != nil {
		s.log.Error("failed to record draw", zap.Error(err))
	}
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{Version: s.version, State: s.state, Display: s.display}
}

func (s *Session) shutdown() {
	s.stopReveal()
	for id, ch := range s.clients {
		close(ch) // Tell client no more snapshots
		delete(s.clients, id)
	}
	s.cancel()
}

func (s *Session) broadcast(snap Snapshot) {
	for id, ch := range s.clients {
		s.sendTo(id, ch, snap)
	}
}

func (s *Session) sendTo(id string, ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		//ok
	default:
		// Client is slow/full - drop them.
		s.log.Debug("dropping slow client", zap.String("client", id))
		close(ch)
		delete(s.clients, id)
	}
}
