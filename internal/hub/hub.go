package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/DoyleJ11/raffle-backend/internal/session"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session not found")
var ErrHubClosed = errors.New("hub closed")

// maxCodeAttempts bounds code regeneration on collisions.
const maxCodeAttempts = 16

const historyCheckTimeout = 2 * time.Second

type HubMsg interface{ isHubMsg() }

// Created answers CreateSession.
type Created struct {
	Session *session.Session
	Err     error
}

type CreateSession struct {
	Reply chan Created
}

type GetSession struct {
	Code  string
	Reply chan *session.Session
}

// RemoveSession shuts the session down and forgets it. Reply, when set,
// reports whether the code was known.
type RemoveSession struct {
	Code  string
	Reply chan bool
}

type ShutdownHub struct{}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	retired  map[string]struct{} // removed codes, never handed out again
	ctx      context.Context
	cancel   context.CancelFunc

	defaults session.Config
	newCode  func() (string, error)
	log      *zap.Logger
}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

// Option customizes a Hub.
type Option func(*Hub)

// WithCodeGenerator replaces GenerateCode, mostly for tests.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(h *Hub) { h.newCode = gen }
}

// NewHub starts the registry. defaults is copied into every new session;
// its Code is ignored. A non-nil defaults.Rand is shared by all sessions,
// so leave it nil unless the hub serves a single session.
func NewHub(parent context.Context, defaults session.Config, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	log := defaults.Logger
	if log == nil {
		log = zap.NewNop()
		defaults.Logger = log
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		retired:  make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		defaults: defaults,
		newCode:  GenerateCode,
		log:      log,
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub stops.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) Create(ctx context.Context) (*session.Session, error) {
	reply := make(chan Created, 1)
	if err := h.send(ctx, CreateSession{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.Session, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	}
}

func (h *Hub) Get(ctx context.Context, code string) (*session.Session, error) {
	reply := make(chan *session.Session, 1)
	if err := h.send(ctx, GetSession{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case s := <-reply:
		if s == nil {
			return nil, ErrSessionNotFound
		}
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	}
}

func (h *Hub) Remove(ctx context.Context, code string) error {
	reply := make(chan bool, 1)
	if err := h.send(ctx, RemoveSession{Code: code, Reply: reply}); err != nil {
		return err
	}
	select {
	case ok := <-reply:
		if !ok {
			return ErrSessionNotFound
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return ErrHubClosed
	}
}

// Shutdown stops every session and then the hub itself.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return ErrHubClosed
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			// sessions are children of h.ctx and stop on their own
			clear(h.sessions)
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				s, err := h.create()
				msg.Reply <- Created{Session: s, Err: err}

			case GetSession:
				msg.Reply <- h.sessions[msg.Code] // May be nil

			case RemoveSession:
				s, ok := h.sessions[msg.Code]
				if ok {
					delete(h.sessions, msg.Code)
					h.retired[msg.Code] = struct{}{}
					h.stop(s)
					h.log.Info("session removed", zap.String("session", msg.Code))
				}
				if msg.Reply != nil {
					msg.Reply <- ok
				}

			case ShutdownHub:
				for _, s := range h.sessions {
					h.stop(s)
				}
				clear(h.sessions)
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) create() (*session.Session, error) {
	var code string
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeAttempts {
			return nil, errors.New("could not find a free session code")
		}
		c, err := h.newCode()
		if err != nil {
			return nil, err
		}
		taken, err := h.taken(c)
		if err != nil {
			return nil, err
		}
		if !taken {
			code = c
			break
		}
		h.log.Debug("collision on code, regenerating", zap.String("code", c))
	}

	cfg := h.defaults
	cfg.Code = code
	s, err := session.NewSession(h.ctx, cfg)
	if err != nil {
		return nil, err
	}
	h.sessions[code] = s
	h.log.Info("session created", zap.String("session", code))
	return s, nil
}

// taken reports whether code belongs to a live or removed session, or
// already has draws on record from an earlier run.
func (h *Hub) taken(code string) (bool, error) {
	if _, ok := h.sessions[code]; ok {
		return true, nil
	}
	if _, ok := h.retired[code]; ok {
		return true, nil
	}
	if h.defaults.History == nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(h.ctx, historyCheckTimeout)
	defer cancel()
	records, err := h.defaults.History.List(ctx, code)
	if err != nil {
		return false, fmt.Errorf("check history for code %s: %w", code, err)
	}
	return len(records) > 0, nil
}

// stop asks s to shut down without blocking the hub on a busy session.
func (h *Hub) stop(s *session.Session) {
	select {
	case s.Inbox() <- session.Shutdown{}:
	default:
		go func() {
			select {
			case s.Inbox() <- session.Shutdown{}:
			case <-s.Done():
			}
		}()
	}
}

// GenerateCode returns a 6 character [A-Z0-9] session code.
func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
