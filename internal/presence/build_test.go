package presence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/lol-presence/internal/engine"
	"github.com/DoyleJ11/lol-presence/pkg/types"
)

var gold = engine.Rank{Tier: "GOLD", Division: "II", LeaguePoints: 45}

func lobbyClient() engine.ClientInfo {
	return engine.ClientInfo{
		QueueID:      420,
		QueueName:    "Ranked Solo/Duo",
		PartyID:      "abc",
		PartySize:    2,
		PartyMax:     5,
		Rank:         gold,
		Availability: "chat",
	}
}

func TestBuild_NoneIsZero(t *testing.T) {
	snap := Build(engine.State{Phase: engine.PhaseNone, Client: lobbyClient()}, Options{ShowEmojis: true})
	assert.True(t, snap.IsZero())
}

func TestBuild_Lobby(t *testing.T) {
	snap := Build(engine.State{Phase: engine.PhaseLobby, Client: lobbyClient()}, Options{})

	assert.Equal(t, "In Lobby", snap.Details)
	assert.Equal(t, "Ranked Solo/Duo", snap.State)
	assert.Equal(t, types.Party{ID: "abc", Size: 2, Max: 5}, snap.Party)
	assert.Equal(t, LogoImageKey, snap.LargeImageKey)
	assert.Equal(t, "rank_gold", snap.SmallImageKey)
	assert.Equal(t, "Gold II · 45 LP", snap.SmallImageText)
}

func TestBuild_ChampSelect(t *testing.T) {
	s := engine.State{Phase: engine.PhaseChampSelect, Client: lobbyClient()}

	picking := Build(s, Options{})
	assert.Equal(t, "In Champion Select", picking.Details)
	assert.Equal(t, LogoImageKey, picking.LargeImageKey)

	s.Champion = engine.Champion{ID: 103, Name: "Ahri", Key: "Ahri"}
	locked := Build(s, Options{})
	assert.Equal(t, "Champion Select (Ahri)", locked.Details)
	assert.Equal(t, ChampionImage("Ahri"), locked.LargeImageKey)
	assert.Equal(t, "Ahri", locked.LargeImageText)
}

func TestBuild_InProgress(t *testing.T) {
	s := engine.State{
		Phase:    engine.PhaseInProgress,
		Client:   lobbyClient(),
		Champion: engine.Champion{ID: 103, Name: "Ahri", Key: "Ahri"},
		Match: &engine.MatchContext{
			ChampionName:   "Ahri",
			ChampionKey:    "Ahri",
			GameMode:       "Classic",
			QueueType:      "Ranked Solo/Duo",
			TeamSide:       engine.TeamBlue,
			StartTimestamp: 1700000000,
		},
		Stats: &engine.LiveStats{Kills: 5, Deaths: 2, Assists: 7, CreepScore: 143, Level: 14},
	}

	cases := []struct {
		name      string
		opts      Options
		wantState string
		wantRank  bool
	}{
		{name: "stats shown", opts: Options{}, wantState: "5/2/7 · 143 CS · Lvl 14", wantRank: true},
		{name: "no stats", opts: Options{NoStats: true}, wantState: "Ranked Solo/Duo", wantRank: true},
		{name: "no rank", opts: Options{NoRank: true}, wantState: "5/2/7 · 143 CS · Lvl 14"},
		{name: "emojis", opts: Options{ShowEmojis: true}, wantState: "🟢 5/2/7 · 143 CS · Lvl 14", wantRank: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := Build(s, tc.opts)
			assert.Equal(t, "Playing Ahri", snap.Details)
			assert.Equal(t, tc.wantState, snap.State)
			assert.Equal(t, int64(1700000000), snap.StartTimestamp)
			assert.Equal(t, ChampionImage("Ahri"), snap.LargeImageKey)
			if tc.wantRank {
				assert.Equal(t, "rank_gold", snap.SmallImageKey)
			} else {
				assert.Empty(t, snap.SmallImageKey)
				assert.Empty(t, snap.SmallImageText)
			}
		})
	}
}

func TestBuild_PostGame(t *testing.T) {
	for _, phase := range []engine.Phase{engine.PhaseWaitingForStats, engine.PhasePreEndOfGame, engine.PhaseEndOfGame} {
		t.Run(string(phase), func(t *testing.T) {
			snap := Build(engine.State{Phase: phase, Client: lobbyClient()}, Options{})
			assert.Equal(t, "Post Game", snap.Details)
			assert.Equal(t, "Ranked Solo/Duo", snap.State)
			assert.Equal(t, LogoImageKey, snap.LargeImageKey)
		})
	}
}

func TestBuild_IsPure(t *testing.T) {
	s := engine.State{
		Phase:  engine.PhaseInProgress,
		Client: lobbyClient(),
		Match:  &engine.MatchContext{ChampionName: "Ahri", ChampionKey: "Ahri", StartTimestamp: 42},
		Stats:  &engine.LiveStats{Kills: 1},
	}
	opts := Options{ShowEmojis: true}

	first := Build(s, opts)
	for i := 0; i < 10; i++ {
		// unrelated builds in between must not leak into the result
		_ = Build(engine.State{Phase: engine.PhaseLobby}, Options{NoRank: true})
		again := Build(s, opts)
		require.Equal(t, first, again)
		require.Equal(t, Fingerprint(first), Fingerprint(again))
	}
}

func TestFormatRank(t *testing.T) {
	assert.Equal(t, "Gold II · 45 LP", FormatRank(gold))
	assert.Equal(t, "Grandmaster · 310 LP", FormatRank(engine.Rank{Tier: "GRANDMASTER", Division: "NA", LeaguePoints: 310}))
}

func TestBuild_UnrankedHasNoRankAsset(t *testing.T) {
	c := lobbyClient()
	c.Rank = engine.Rank{Tier: "NONE"}
	snap := Build(engine.State{Phase: engine.PhaseLobby, Client: c}, Options{})
	assert.Empty(t, snap.SmallImageKey)
}

func TestFingerprint(t *testing.T) {
	a := types.Snapshot{Details: "In Lobby", State: "ARAM"}
	b := types.Snapshot{Details: "In Lobby", State: "ARAM"}
	c := types.Snapshot{Details: "In Queue", State: "ARAM"}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
	assert.Len(t, Fingerprint(a), 32)
	assert.False(t, strings.ContainsAny(Fingerprint(a), "ABCDEF"))
}
