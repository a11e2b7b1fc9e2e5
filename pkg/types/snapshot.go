package types

import (
	"time"

	"github.com/DoyleJ11/raffle-backend/internal/engine"
	"github.com/DoyleJ11/raffle-backend/internal/history"
)

// SessionView is what clients see of a session, over REST and websocket.
//
// Winners holds only the announced winners: while a draw is being revealed
// the rest stay hidden even though the session already knows them.
type SessionView struct {
	Code       string               `json:"code"`
	Version    int                  `json:"version"`
	Phase      engine.Phase         `json:"phase"`
	RosterSize int                  `json:"roster_size"`
	PoolSize   int                  `json:"pool_size"`
	Pool       []engine.Participant `json:"pool"`
	Branding   engine.Branding      `json:"branding"`
	Requested  int                  `json:"requested"`
	Winners    []engine.Participant `json:"winners"`
	Draws      int                  `json:"draws"`
	Display    string               `json:"display,omitempty"` // name on screen during a reveal
	Clients    int                  `json:"clients,omitempty"`
}

func FromState(code string, version int, s engine.State, display string) SessionView {
	v := SessionView{
		Code:       code,
		Version:    version,
		Phase:      s.Phase,
		RosterSize: len(s.Roster),
		PoolSize:   len(s.Pool),
		Pool:       nonNil(s.Pool),
		Branding:   s.Branding,
		Requested:  s.Requested,
		Winners:    nonNil(s.Announced()),
		Draws:      s.Draws,
		Display:    display,
	}
	if v.Branding.Logos == nil {
		v.Branding.Logos = []string{}
	}
	return v
}

type HistoryEntry struct {
	Sequence  int                  `json:"sequence"`
	Requested int                  `json:"requested"`
	PoolSize  int                  `json:"pool_size"`
	Winners   []engine.Participant `json:"winners"`
	DrawnAt   time.Time            `json:"drawn_at"`
}

type HistoryView struct {
	Code  string         `json:"code"`
	Draws []HistoryEntry `json:"draws"`
}

func FromRecords(code string, records []history.Record) HistoryView {
	out := HistoryView{Code: code, Draws: make([]HistoryEntry, 0, len(records))}
	for _, r := range records {
		out.Draws = append(out.Draws, HistoryEntry{
			Sequence:  r.Sequence,
			Requested: r.Requested,
			PoolSize:  r.PoolSize,
			Winners:   nonNil(r.Winners),
			DrawnAt:   r.DrawnAt,
		})
	}
	return out
}

func nonNil(ps []engine.Participant) []engine.Participant {
	if ps == nil {
		return []engine.Participant{}
	}
	return ps
}
