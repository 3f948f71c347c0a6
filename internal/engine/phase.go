package engine

import "fmt"

type Phase string

const (
	PhaseNone            Phase = "None"
	PhaseLobby           Phase = "Lobby"
	PhaseMatchmaking     Phase = "Matchmaking"
	PhaseReadyCheck      Phase = "ReadyCheck"
	PhaseChampSelect     Phase = "ChampSelect"
	PhaseGameStart       Phase = "GameStart"
	PhaseInProgress      Phase = "InProgress"
	PhaseWaitingForStats Phase = "WaitingForStats"
	PhasePreEndOfGame    Phase = "PreEndOfGame"
	PhaseEndOfGame       Phase = "EndOfGame"
)

// GameflowOrder is the order the client walks through for a normal game.
var GameflowOrder = []Phase{
	PhaseNone,
	PhaseLobby,
	PhaseMatchmaking,
	PhaseReadyCheck,
	PhaseChampSelect,
	PhaseGameStart,
	PhaseInProgress,
	PhaseWaitingForStats,
	PhasePreEndOfGame,
	PhaseEndOfGame,
}

func (p Phase) Valid() bool {
	for _, known := range GameflowOrder {
		if p == known {
			return true
		}
	}
	return false
}

func ParsePhase(raw string) (Phase, error) {
	p := Phase(raw)
	if !p.Valid() {
		return PhaseNone, fmt.Errorf("%w: %q", ErrUnknownPhase, raw)
	}
	return p, nil
}
