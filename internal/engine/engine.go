package engine

import (
	"errors"
)

var ErrPhaseUnchanged = errors.New("phase unchanged")
var ErrUnknownPhase = errors.New("unknown gameflow phase")
var ErrNotInGame = errors.New("not in game")
var ErrNotInChampSelect = errors.New("not in champion select")
var ErrNoChange = errors.New("no change")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Team string

const (
	TeamBlue Team = "blue"
	TeamRed  Team = "red"
)

type Champion struct {
	ID   int
	Name string
	// Key is the asset alias used in image URLs ("MonkeyKing" for Wukong).
	Key string
}

type Rank struct {
	Tier         string
	Division     string
	LeaguePoints int
}

// ClientInfo is everything the out-of-game presence shows besides the phase.
type ClientInfo struct {
	QueueID      int
	QueueName    string
	PartyID      string
	PartySize    int
	PartyMax     int
	Rank         Rank
	Availability string
}

type MatchContext struct {
	ChampionName   string
	ChampionKey    string
	GameMode       string
	QueueType      string
	TeamSide       Team
	StartTimestamp int64 // unix seconds
}

type LiveStats struct {
	Kills      int
	Deaths     int
	Assists    int
	CreepScore int
	Level      int
}

// Reading is one successful poll of the in-match API.
type Reading struct {
	Stats        LiveStats
	ChampionName string
	ChampionKey  string
	TeamSide     Team
}

// State is the full input of the presence. Match and Stats are replaced,
// never mutated in place, so copies of State can be shared.
type State struct {
	Phase    Phase
	Client   ClientInfo
	Champion Champion
	Match    *MatchContext
	Stats    *LiveStats
}

type CommandType string

const (
	CmdSetPhase       CommandType = "SetPhase"
	CmdLockChampion   CommandType = "LockChampion"
	CmdClearChampion  CommandType = "ClearChampion"
	CmdStartMatch     CommandType = "StartMatch"
	CmdRecordStats    CommandType = "RecordStats"
	CmdUpdateClient   CommandType = "UpdateClient"
	CmdConnectionLost CommandType = "ConnectionLost"
	CmdReset          CommandType = "Reset"
)

/*
	CmdSetPhase       -> EvtPhaseChanged -> (EvtPollingStopped) -> EvtFetchChampion | EvtFetchMatch, EvtPollingStarted | EvtFetchClientInfo
	CmdLockChampion   -> EvtChampionChanged
	CmdClearChampion  -> EvtChampionChanged
	CmdStartMatch     -> EvtMatchStarted
	CmdRecordStats    -> EvtStatsRecorded
	CmdUpdateClient   -> EvtClientChanged
	CmdConnectionLost -> (EvtPollingStopped) -> EvtMatchCleared
	CmdReset          -> (EvtPollingStopped) -> EvtReset
*/

type Command struct {
	Type     CommandType
	Phase    Phase
	Champion Champion
	Match    MatchContext
	Reading  Reading
	Client   ClientInfo
}

type EventType string

const (
	EvtPhaseChanged    EventType = "PhaseChanged"
	EvtFetchChampion   EventType = "FetchChampion"
	EvtFetchMatch      EventType = "FetchMatch"
	EvtFetchClientInfo EventType = "FetchClientInfo"
	EvtPollingStarted  EventType = "PollingStarted"
	EvtPollingStopped  EventType = "PollingStopped"
	EvtChampionChanged EventType = "ChampionChanged"
	EvtMatchStarted    EventType = "MatchStarted"
	EvtStatsRecorded   EventType = "StatsRecorded"
	EvtClientChanged   EventType = "ClientChanged"
	EvtMatchCleared    EventType = "MatchCleared"
	EvtReset           EventType = "Reset"
)

type Event struct {
	Type EventType
	From Phase
	To   Phase
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	newState := s

	switch cmd.Type {
	case CmdSetPhase:
		if !cmd.Phase.Valid() {
			return nil, s, ErrUnknownPhase
		}
		if cmd.Phase == s.Phase {
			return nil, s, ErrPhaseUnchanged
		}

		events := []Event{{Type: EvtPhaseChanged, From: s.Phase, To: cmd.Phase}}
		newState.Phase = cmd.Phase

		// Leaving the match: drop everything scoped to it
		if s.Phase == PhaseInProgress {
			newState.Match = nil
			newState.Stats = nil
			events = append(events, Event{Type: EvtPollingStopped})
		}
		if !keepsChampion(cmd.Phase) {
			newState.Champion = Champion{}
		}

		switch cmd.Phase {
		case PhaseChampSelect:
			events = append(events, Event{Type: EvtFetchChampion})
		case PhaseInProgress:
			events = append(events,
				Event{Type: EvtFetchMatch},
				Event{Type: EvtPollingStarted},
			)
		case PhaseNone, PhaseLobby, PhaseMatchmaking, PhaseReadyCheck, PhaseEndOfGame:
			events = append(events, Event{Type: EvtFetchClientInfo})
		}
		return events, newState, nil

	case CmdLockChampion:
		if !keepsChampion(s.Phase) {
			return nil, s, ErrNotInChampSelect
		}
		if cmd.Champion == s.Champion {
			return nil, s, ErrNoChange
		}
		newState.Champion = cmd.Champion
		return []Event{{Type: EvtChampionChanged}}, newState, nil

	case CmdClearChampion:
		if s.Champion == (Champion{}) {
			return nil, s, ErrNoChange
		}
		newState.Champion = Champion{}
		return []Event{{Type: EvtChampionChanged}}, newState, nil

	case CmdStartMatch:
		if s.Phase != PhaseInProgress {
			return nil, s, ErrNotInGame
		}
		match := cmd.Match
		if match.ChampionName == "" {
			match.ChampionName = s.Champion.Name
			match.ChampionKey = s.Champion.Key
		}
		if s.Match != nil && *s.Match == match {
			return nil, s, ErrNoChange
		}
		newState.Match = &match
		return []Event{{Type: EvtMatchStarted}}, newState, nil

	case CmdRecordStats:
		// Polls that land after the match ended must not touch the state
		if s.Phase != PhaseInProgress {
			return nil, s, ErrNotInGame
		}

		changed := false
		if s.Match != nil && needsPatch(*s.Match, cmd.Reading) {
			match := patchMatch(*s.Match, cmd.Reading)
			newState.Match = &match
			changed = true
		}
		if s.Stats == nil || *s.Stats != cmd.Reading.Stats {
			stats := cmd.Reading.Stats
			newState.Stats = &stats
			changed = true
		}
		if !changed {
			return nil, s, ErrNoChange
		}
		return []Event{{Type: EvtStatsRecorded}}, newState, nil

	case CmdUpdateClient:
		if cmd.Client == s.Client {
			return nil, s, ErrNoChange
		}
		newState.Client = cmd.Client
		return []Event{{Type: EvtClientChanged}}, newState, nil

	case CmdConnectionLost:
		events := []Event{}
		if s.Phase == PhaseInProgress {
			events = append(events, Event{Type: EvtPollingStopped})
		}
		newState.Match = nil
		newState.Stats = nil
		events = append(events, Event{Type: EvtMatchCleared})
		return events, newState, nil

	case CmdReset:
		events := []Event{}
		if s.Phase == PhaseInProgress {
			events = append(events, Event{Type: EvtPollingStopped})
		}
		events = append(events, Event{Type: EvtReset, From: s.Phase, To: PhaseNone})
		return events, NewState(), nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func keepsChampion(p Phase) bool {
	return p == PhaseChampSelect || p == PhaseGameStart || p == PhaseInProgress
}

func needsPatch(m MatchContext, r Reading) bool {
	return (m.ChampionName == "" && r.ChampionName != "") ||
		(m.TeamSide == "" && r.TeamSide != "")
}

func patchMatch(m MatchContext, r Reading) MatchContext {
	if m.ChampionName == "" && r.ChampionName != "" {
		m.ChampionName = r.ChampionName
		m.ChampionKey = r.ChampionKey
	}
	if m.TeamSide == "" {
		m.TeamSide = r.TeamSide
	}
	return m
}
