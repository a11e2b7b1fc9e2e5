package session

import (
	"time"

	"github.com/DoyleJ11/raffle-backend/internal/engine"
	"go.uber.org/zap"
)

// The winners are already fixed when the reveal starts; the timers only
// pace how they are announced.

func (s *Session) startReveal() {
	s.stopReveal()
	s.armFlicker()
	s.arm(tickReveal, s.pacing.Reveal)
}

// stopReveal cancels pending timers and invalidates any tick already queued.
func (s *Session) stopReveal() {
	stopTimer(&s.flickerTimer)
	stopTimer(&s.stepTimer)
	s.gen++
}

// arm schedules the next tick of kind. At most one flicker and one
// reveal or settle tick are pending at a time.
func (s *Session) arm(kind tickKind, after time.Duration) {
	slot := &s.stepTimer
	if kind == tickFlicker {
		slot = &s.flickerTimer
	}
	stopTimer(slot)

	tick := revealTick{gen: s.gen, kind: kind}
	*slot = time.AfterFunc(after, func() {
		select {
		case s.inbox <- tick:
		case <-s.ctx.Done():
		}
	})
}

func (s *Session) armFlicker() {
	if s.pacing.Flicker > 0 {
		s.arm(tickFlicker, s.pacing.Flicker)
	}
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (s *Session) onTick(tick revealTick) {
	if tick.gen != s.gen || s.state.Phase != engine.PhaseDrawing {
		return // stale
	}

	switch tick.kind {
	case tickFlicker:
		if s.state.RevealDone() {
			return
		}
		candidates := s.state.Unannounced()
		if len(candidates) == 0 {
			return
		}
		s.display = candidates[s.rng.IntN(len(candidates))].Name
		frame := s.snapshot()
		frame.DisplayOnly = true
		s.broadcast(frame)
		s.armFlicker()

	case tickReveal:
		if err := s.apply(engine.Command{Type: engine.CmdRevealNext}); err != nil {
			s.log.Warn("reveal failed", zap.Error(err))
			return
		}
		if s.state.RevealDone() {
			s.arm(tickSettle, s.pacing.Settle)
			return
		}
		s.arm(tickReveal, s.pacing.Reveal)

	case tickSettle:
		if err := s.apply(engine.Command{Type: engine.CmdFinishDraw}); err != nil {
			s.log.Warn("finishing draw failed", zap.Error(err))
		}
	}
}
