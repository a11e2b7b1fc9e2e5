package types

import (
	"github.com/DoyleJ11/raffle-backend/internal/engine"
	pub "github.com/DoyleJ11/raffle-backend/pkg/types"
)

type ClientMessage struct {
	Type        string   `json:"type"`
	Count       int      `json:"count,omitempty"`
	KeepRoster  bool     `json:"keep_roster,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Logos       []string `json:"logos,omitempty"`
}

type ServerMessage struct {
	Type    string           `json:"type"` // "StateSnapshot" | "Display" | "Error"
	State   *pub.SessionView `json:"state,omitempty"`
	Version int              `json:"version,omitempty"`
	Display string           `json:"display,omitempty"`
	Error   string           `json:"error,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Command converts m into an engine command. Only the commands a client
// may issue are accepted.
func (m ClientMessage) Command() (engine.Command, bool) {
	switch m.Type {
	case "StartDraw":
		return engine.Command{Type: engine.CmdStartDraw, Count: m.Count}, true
	case "NewDraw":
		return engine.Command{Type: engine.CmdNewDraw}, true
	case "Reset":
		return engine.Command{Type: engine.CmdReset, KeepRoster: m.KeepRoster}, true
	case "SetBranding":
		return engine.Command{Type: engine.CmdSetBranding, Branding: engine.Branding{
			Title:       m.Title,
			Description: m.Description,
			Logos:       m.Logos,
		}}, true
	default:
		return engine.Command{}, false
	}
}
