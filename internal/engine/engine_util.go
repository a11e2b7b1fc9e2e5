package engine

import "slices"

// allowedPhases lists, per command, the phases in which it may be applied.
var allowedPhases = map[CommandType][]Phase{
	CmdLoadRoster:  {PhaseUpload},
	CmdSetBranding: {PhaseUpload, PhaseConfigure},
	CmdStartDraw:   {PhaseConfigure},
	CmdRevealNext:  {PhaseDrawing},
	CmdFinishDraw:  {PhaseDrawing},
	CmdNewDraw:     {PhaseResults},
	CmdReset:       {PhaseUpload, PhaseConfigure, PhaseDrawing, PhaseResults},
}

func NewEmptyState() State {
	return State{Phase: PhaseUpload}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func allowed(cmd CommandType, phase Phase) bool {
	return slices.Contains(allowedPhases[cmd], phase)
}

// Announced returns the winners revealed so far in the current draw.
func (s State) Announced() []Participant {
	return s.Winners[:s.Revealed]
}

// Unannounced returns the participants a reveal can still flash on screen:
// the pool minus the winners already revealed.
func (s State) Unannounced() []Participant {
	return Remove(s.Pool, s.Announced())
}

// RevealDone reports whether every winner of the current draw is announced.
func (s State) RevealDone() bool {
	return s.Phase == PhaseDrawing && s.Revealed >= len(s.Winners)
}
