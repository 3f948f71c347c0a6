// Package liveclient polls the in-match Live Client Data API, which only
// answers while a game is loaded.
package liveclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/DoyleJ11/lol-presence/internal/engine"
	"github.com/DoyleJ11/lol-presence/internal/lcu"
)

const DefaultBaseURL = "https://127.0.0.1:2999"

const (
	pathActivePlayerName = "/liveclientdata/activeplayername"
	pathPlayerList       = "/liveclientdata/playerlist"
	pathGameStats        = "/liveclientdata/gamestats"

	rawChampionPrefix = "game_character_displayname_"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   2 * time.Second,
			Transport: lcu.InsecureTransport(),
		},
	}
}

func (c *Client) get(ctx context.Context, path string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("live client %s: status %d", path, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("live client %s: invalid json", path)
	}
	return gjson.ParseBytes(body), nil
}

// LiveStats reads the active player's scoreboard line.
func (c *Client) LiveStats(ctx context.Context) (engine.Reading, error) {
	name, err := c.get(ctx, pathActivePlayerName)
	if err != nil {
		return engine.Reading{}, err
	}
	players, err := c.get(ctx, pathPlayerList)
	if err != nil {
		return engine.Reading{}, err
	}

	player, ok := findPlayer(players, name.String())
	if !ok {
		return engine.Reading{}, fmt.Errorf("active player %q not in player list", name.String())
	}

	scores := player.Get("scores")
	reading := engine.Reading{
		Stats: engine.LiveStats{
			Kills:      int(scores.Get("kills").Int()),
			Deaths:     int(scores.Get("deaths").Int()),
			Assists:    int(scores.Get("assists").Int()),
			CreepScore: int(scores.Get("creepScore").Int()),
			Level:      int(player.Get("level").Int()),
		},
		ChampionName: player.Get("championName").String(),
		ChampionKey:  strings.TrimPrefix(player.Get("rawChampionName").String(), rawChampionPrefix),
	}
	switch player.Get("team").String() {
	case "ORDER":
		reading.TeamSide = engine.TeamBlue
	case "CHAOS":
		reading.TeamSide = engine.TeamRed
	}
	return reading, nil
}

// GameTime is how long the current match has been running.
func (c *Client) GameTime(ctx context.Context) (time.Duration, error) {
	stats, err := c.get(ctx, pathGameStats)
	if err != nil {
		return 0, err
	}
	seconds := stats.Get("gameTime")
	if !seconds.Exists() {
		return 0, fmt.Errorf("live client %s: missing gameTime", pathGameStats)
	}
	return time.Duration(seconds.Float() * float64(time.Second)), nil
}

// findPlayer matches on Riot ID, falling back to the legacy summoner name.
func findPlayer(players gjson.Result, name string) (gjson.Result, bool) {
	if name == "" {
		return gjson.Result{}, false
	}
	gameName, _, _ := strings.Cut(name, "#")
	for _, p := range players.Array() {
		if p.Get("riotId").String() == name ||
			p.Get("summonerName").String() == name ||
			p.Get("riotIdGameName").String() == gameName {
			return p, true
		}
	}
	return gjson.Result{}, false
}
