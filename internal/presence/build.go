// Package presence turns the tracked client state into the snapshot shown on
// Discord. Everything here is pure: the same state and options always build
// the same snapshot.
package presence

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DoyleJ11/lol-presence/internal/engine"
	"github.com/DoyleJ11/lol-presence/pkg/types"
)

const (
	LogoImageKey  = "logo"
	LogoImageText = "League of Legends"

	championTileURL = "https://cdn.communitydragon.org/latest/champion/%s/square"
)

// Options gate which fields are filled in. They never change control flow.
type Options struct {
	NoStats    bool
	NoRank     bool
	ShowEmojis bool
}

func Build(s engine.State, opts Options) types.Snapshot {
	var snap types.Snapshot

	switch s.Phase {
	case engine.PhaseNone:
		return types.Snapshot{}

	case engine.PhaseLobby:
		snap.Details = "In Lobby"
		snap.State = s.Client.QueueName
		snap.Party = party(s.Client)

	case engine.PhaseMatchmaking:
		snap.Details = "In Queue"
		snap.State = s.Client.QueueName
		snap.Party = party(s.Client)

	case engine.PhaseReadyCheck:
		snap.Details = "Match Found"
		snap.State = s.Client.QueueName
		snap.Party = party(s.Client)

	case engine.PhaseChampSelect:
		if s.Champion.Name == "" {
			snap.Details = "In Champion Select"
		} else {
			snap.Details = fmt.Sprintf("Champion Select (%s)", s.Champion.Name)
			setChampion(&snap, s.Champion.Name, s.Champion.Key)
		}
		snap.State = s.Client.QueueName
		snap.Party = party(s.Client)

	case engine.PhaseGameStart:
		snap.Details = "Loading into Game"
		snap.State = s.Client.QueueName
		setChampion(&snap, s.Champion.Name, s.Champion.Key)

	case engine.PhaseInProgress:
		name, key := s.Champion.Name, s.Champion.Key
		queue := s.Client.QueueName
		if s.Match != nil {
			if s.Match.ChampionName != "" {
				name, key = s.Match.ChampionName, s.Match.ChampionKey
			}
			if s.Match.QueueType != "" {
				queue = s.Match.QueueType
			} else if s.Match.GameMode != "" {
				queue = s.Match.GameMode
			}
			snap.StartTimestamp = s.Match.StartTimestamp
		}

		snap.Details = "In Game"
		if name != "" {
			snap.Details = "Playing " + name
		}
		snap.State = queue
		if !opts.NoStats && s.Stats != nil {
			snap.State = FormatStats(*s.Stats)
		}
		setChampion(&snap, name, key)

	default:
		if engine.PostGame(s.Phase) {
			snap.Details = "Post Game"
			snap.State = s.Client.QueueName
		}
	}

	if snap.LargeImageKey == "" {
		snap.LargeImageKey = LogoImageKey
		snap.LargeImageText = LogoImageText
	}

	if !opts.NoRank {
		if key, text, ok := rankAsset(s.Client.Rank); ok {
			snap.SmallImageKey = key
			snap.SmallImageText = text
		}
	}

	if opts.ShowEmojis && snap.State != "" {
		if emoji := AvailabilityEmoji(s.Client.Availability); emoji != "" {
			snap.State = emoji + " " + snap.State
		}
	}

	return snap
}

func FormatStats(st engine.LiveStats) string {
	return fmt.Sprintf("%d/%d/%d · %d CS · Lvl %d", st.Kills, st.Deaths, st.Assists, st.CreepScore, st.Level)
}

// FormatRank renders "Gold II · 45 LP", or "Master · 120 LP" for apex tiers.
func FormatRank(r engine.Rank) string {
	tier := cases.Title(language.English).String(strings.ToLower(r.Tier))
	if r.Division == "" || r.Division == "NA" {
		return fmt.Sprintf("%s · %d LP", tier, r.LeaguePoints)
	}
	return fmt.Sprintf("%s %s · %d LP", tier, r.Division, r.LeaguePoints)
}

func AvailabilityEmoji(availability string) string {
	switch availability {
	case "chat":
		return "🟢"
	case "away", "dnd":
		return "🔴"
	case "offline", "mobile":
		return "⚫"
	default:
		return ""
	}
}

func ChampionImage(key string) string {
	return fmt.Sprintf(championTileURL, key)
}

func setChampion(snap *types.Snapshot, name, key string) {
	if key == "" {
		return
	}
	snap.LargeImageKey = ChampionImage(key)
	snap.LargeImageText = name
}

func party(c engine.ClientInfo) types.Party {
	if c.PartySize == 0 {
		return types.Party{}
	}
	return types.Party{ID: c.PartyID, Size: c.PartySize, Max: c.PartyMax}
}

func rankAsset(r engine.Rank) (key, text string, ok bool) {
	if r.Tier == "" || r.Tier == "NONE" || r.Tier == "UNRANKED" {
		return "", "", false
	}
	return "rank_" + strings.ToLower(r.Tier), FormatRank(r), true
}
