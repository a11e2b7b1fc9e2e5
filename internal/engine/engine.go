package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrInvalidCount = errors.New("invalid winner count")
var ErrInvalidRoster = errors.New("invalid roster")
var ErrWrongPhase = errors.New("command not allowed in current phase")
var ErrPoolExhausted = errors.New("no participants left to draw")
var ErrNoRoster = errors.New("no roster loaded")
var ErrRevealComplete = errors.New("all winners already revealed")
var ErrRevealPending = errors.New("winners still being revealed")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseUpload    Phase = "upload"
	PhaseConfigure Phase = "configure"
	PhaseDrawing   Phase = "drawing"
	PhaseResults   Phase = "results"
)

type State struct {
	Phase    Phase
	Roster   []Participant
	Pool     []Participant
	Branding Branding

	// Requested is the count of the current (or last) draw.
	Requested int
	Winners   []Participant
	Revealed  int
	Draws     int
}

type CommandType string

const (
	CmdLoadRoster  CommandType = "LoadRoster"
	CmdSetBranding CommandType = "SetBranding"
	CmdStartDraw   CommandType = "StartDraw"
	CmdRevealNext  CommandType = "RevealNext"
	CmdFinishDraw  CommandType = "FinishDraw"
	CmdNewDraw     CommandType = "NewDraw"
	CmdReset       CommandType = "Reset"
)

/*
	CmdLoadRoster  -> EvtRosterLoaded
	CmdSetBranding -> EvtBrandingSet
	CmdStartDraw   -> EvtDrawStarted (winners computed up front)
	CmdRevealNext  -> EvtWinnerRevealed
	CmdFinishDraw  -> EvtDrawCompleted, plus EvtPoolExhausted when nobody is left
	CmdNewDraw     -> EvtDrawReopened
	CmdReset       -> EvtSessionReset
*/

type Command struct {
	Type       CommandType
	Roster     []Participant
	Branding   Branding
	Count      int
	KeepRoster bool
}

type EventType string

const (
	EvtRosterLoaded   EventType = "RosterLoaded"
	EvtBrandingSet    EventType = "BrandingSet"
	EvtDrawStarted    EventType = "DrawStarted"
	EvtWinnerRevealed EventType = "WinnerRevealed"
	EvtDrawCompleted  EventType = "DrawCompleted"
	EvtPoolExhausted  EventType = "PoolExhausted"
	EvtDrawReopened   EventType = "DrawReopened"
	EvtSessionReset   EventType = "SessionReset"
)

type Event struct {
	Type         EventType
	Participants []Participant
	Branding     Branding
	Count        int
	KeepRoster   bool
}

// Apply validates cmd against s and returns the resulting events and state.
// s is never modified; on error the returned state is s itself.
func Apply(s State, cmd Command, rng Rand) ([]Event, State, error) {
	if !allowed(cmd.Type, s.Phase) {
		if _, known := allowedPhases[cmd.Type]; !known {
			return nil, s, ErrUnsupportedCommand
		}
		return nil, s, fmt.Errorf("%w: %s during %s", ErrWrongPhase, cmd.Type, s.Phase)
	}

	newState := s

	switch cmd.Type {
	case CmdLoadRoster:
		if len(cmd.Roster) == 0 {
			return nil, s, fmt.Errorf("%w: no participants", ErrInvalidRoster)
		}
		if err := validateRoster(cmd.Roster); err != nil {
			return nil, s, err
		}
		if err := cmd.Branding.Validate(); err != nil {
			return nil, s, err
		}

		roster := slices.Clone(cmd.Roster)
		branding := cmd.Branding.Clone()
		events := []Event{{Type: EvtRosterLoaded, Participants: roster, Branding: branding}}

		newState = NewEmptyState()
		newState.Phase = PhaseConfigure
		newState.Roster = roster
		newState.Pool = roster
		newState.Branding = branding
		return events, newState, nil

	case CmdSetBranding:
		if err := cmd.Branding.Validate(); err != nil {
			return nil, s, err
		}
		branding := cmd.Branding.Clone()
		newState.Branding = branding
		return []Event{{Type: EvtBrandingSet, Branding: branding}}, newState, nil

	case CmdStartDraw:
		winners, err := Draw(s.Pool, cmd.Count, rng)
		if err != nil {
			return nil, s, err
		}

		events := []Event{{Type: EvtDrawStarted, Count: cmd.Count, Participants: winners}}
		newState.Phase = PhaseDrawing
		newState.Requested = cmd.Count
		newState.Winners = winners
		newState.Revealed = 0
		return events, newState, nil

	case CmdRevealNext:
		if s.Revealed >= len(s.Winners) {
			return nil, s, ErrRevealComplete
		}
		winner := s.Winners[s.Revealed]
		newState.Revealed++
		return []Event{{Type: EvtWinnerRevealed, Participants: []Participant{winner}}}, newState, nil

	case CmdFinishDraw:
		if s.Revealed < len(s.Winners) {
			return nil, s, ErrRevealPending
		}

		events := []Event{{Type: EvtDrawCompleted, Participants: s.Winners}}
		newState.Phase = PhaseResults
		newState.Pool = Remove(s.Pool, s.Winners)
		newState.Draws++
		if len(newState.Pool) == 0 {
			events = append(events, Event{Type: EvtPoolExhausted})
		}
		return events, newState, nil

	case CmdNewDraw:
		if len(s.Pool) == 0 {
			return nil, s, ErrPoolExhausted
		}
		newState.Phase = PhaseConfigure
		newState.Winners = nil
		newState.Revealed = 0
		return []Event{{Type: EvtDrawReopened}}, newState, nil

	case CmdReset:
		if cmd.KeepRoster {
			if len(s.Roster) == 0 {
				return nil, s, ErrNoRoster
			}
			newState = NewEmptyState()
			newState.Phase = PhaseConfigure
			newState.Roster = s.Roster
			newState.Pool = s.Roster
			newState.Branding = s.Branding
			return []Event{{Type: EvtSessionReset, KeepRoster: true}}, newState, nil
		}
		return []Event{{Type: EvtSessionReset}}, NewEmptyState(), nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// Reduce rebuilds a state from its event history. Draw events carry their
// winners so no random source is needed.
func Reduce(events []Event) State {
	s := NewEmptyState()
	for _, event := range events {
		switch event.Type {
		case EvtRosterLoaded:
			s = NewEmptyState()
			s.Phase = PhaseConfigure
			s.Roster = event.Participants
			s.Pool = event.Participants
			s.Branding = event.Branding
		case EvtBrandingSet:
			s.Branding = event.Branding
		case EvtDrawStarted:
			s.Phase = PhaseDrawing
			s.Requested = event.Count
			s.Winners = event.Participants
			s.Revealed = 0
		case EvtWinnerRevealed:
			s.Revealed++
		case EvtDrawCompleted:
			s.Phase = PhaseResults
			s.Pool = Remove(s.Pool, event.Participants)
			s.Draws++
		case EvtDrawReopened:
			s.Phase = PhaseConfigure
			s.Winners = nil
			s.Revealed = 0
		case EvtSessionReset:
			if event.KeepRoster {
				roster, branding := s.Roster, s.Branding
				s = NewEmptyState()
				s.Phase = PhaseConfigure
				s.Roster = roster
				s.Pool = roster
				s.Branding = branding
			} else {
				s = NewEmptyState()
			}
		}
	}
	return s
}

func validateRoster(roster []Participant) error {
	seen := make(map[string]bool, len(roster))
	for _, p := range roster {
		if p.ID == "" || strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: participant with empty id or name", ErrInvalidRoster)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: duplicate participant id %q", ErrInvalidRoster, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}
