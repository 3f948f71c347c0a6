package engine

func NewState() State {
	return State{Phase: PhaseNone}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// PostGame reports whether the phase comes after the match ended.
func PostGame(p Phase) bool {
	return p == PhaseWaitingForStats || p == PhasePreEndOfGame || p == PhaseEndOfGame
}
