// Package lcu talks to the League client's local REST API.
package lcu

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/multierr"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DoyleJ11/lol-presence/internal/engine"
	"github.com/DoyleJ11/lol-presence/internal/lockfile"
)

const (
	URIGameflowPhase   = "/lol-gameflow/v1/gameflow-phase"
	URIGameflowSession = "/lol-gameflow/v1/session"
	URICurrentChampion = "/lol-champ-select/v1/current-champion"
	URIChampionSummary = "/lol-game-data/assets/v1/champion-summary.json"
	URICurrentSummoner = "/lol-summoner/v1/current-summoner"
	URILobby           = "/lol-lobby/v2/lobby"
	URIChatMe          = "/lol-chat/v1/me"
	URIRankedStats     = "/lol-ranked/v1/current-ranked-stats"
)

// StatusError is a non-2xx answer from the client.
type StatusError struct {
	URI  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lcu %s: status %d: %s", e.URI, e.Code, e.Body)
}

func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client is bound to one set of lockfile credentials; a restarted client
// needs a new Client. It is used from the tracker goroutine only.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	champions map[int]engine.Champion
	puuid     string
}

// InsecureTransport accepts the client's self-signed loopback certificate.
func InsecureTransport() *http.Transport {
	return &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
}

func NewClient(creds lockfile.Credentials) *Client {
	return NewClientURL(fmt.Sprintf("%s://127.0.0.1:%d", creds.Protocol, creds.Port), creds.Token)
}

func NewClientURL(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout:   5 * time.Second,
			Transport: InsecureTransport(),
		},
	}
}

func (c *Client) getRaw(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth("riot", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", uri, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URI: uri, Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Get returns the response of uri as a parsed JSON document.
func (c *Client) Get(ctx context.Context, uri string) (gjson.Result, error) {
	body, err := c.getRaw(ctx, uri)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("lcu %s: invalid json", uri)
	}
	return gjson.ParseBytes(body), nil
}

func (c *Client) GameflowPhase(ctx context.Context) (engine.Phase, error) {
	res, err := c.Get(ctx, URIGameflowPhase)
	if err != nil {
		return engine.PhaseNone, err
	}
	return engine.ParsePhase(res.String())
}

// CurrentChampion reports the champion locked in during champion select.
// ok is false while the player is still picking.
func (c *Client) CurrentChampion(ctx context.Context) (engine.Champion, bool, error) {
	res, err := c.Get(ctx, URICurrentChampion)
	if err != nil {
		if IsNotFound(err) {
			return engine.Champion{}, false, nil
		}
		return engine.Champion{}, false, err
	}
	id := int(res.Int())
	if id <= 0 {
		return engine.Champion{}, false, nil
	}
	champ, err := c.Champion(ctx, id)
	return champ, err == nil, err
}

// Champion resolves a champion id through the client's asset summary, which
// is loaded once per Client.
func (c *Client) Champion(ctx context.Context, id int) (engine.Champion, error) {
	if c.champions == nil {
		res, err := c.Get(ctx, URIChampionSummary)
		if err != nil {
			return engine.Champion{ID: id}, err
		}
		champions := make(map[int]engine.Champion)
		res.ForEach(func(_, v gjson.Result) bool {
			champ := engine.Champion{
				ID:   int(v.Get("id").Int()),
				Name: v.Get("name").String(),
				Key:  v.Get("alias").String(),
			}
			if champ.ID > 0 {
				champions[champ.ID] = champ
			}
			return true
		})
		c.champions = champions
	}

	champ, ok := c.champions[id]
	if !ok {
		return engine.Champion{ID: id}, fmt.Errorf("unknown champion id %d", id)
	}
	return champ, nil
}

func (c *Client) currentPUUID(ctx context.Context) (string, error) {
	if c.puuid != "" {
		return c.puuid, nil
	}
	res, err := c.Get(ctx, URICurrentSummoner)
	if err != nil {
		return "", err
	}
	c.puuid = res.Get("puuid").String()
	return c.puuid, nil
}

// MatchContext reads the running game from the gameflow session. The start
// timestamp is left for the caller to stamp.
func (c *Client) MatchContext(ctx context.Context) (engine.MatchContext, error) {
	res, err := c.Get(ctx, URIGameflowSession)
	if err != nil {
		return engine.MatchContext{}, err
	}

	queue := res.Get("gameData.queue")
	match := engine.MatchContext{
		GameMode:  DisplayGameMode(queue.Get("gameMode").String()),
		QueueType: QueueName(int(queue.Get("id").Int())),
	}
	if desc := queue.Get("description").String(); desc != "" && match.QueueType == "" {
		match.QueueType = desc
	}

	// side and champion are nice to have; the poll fills them in later
	puuid, err := c.currentPUUID(ctx)
	if err != nil || puuid == "" {
		return match, nil
	}
	sides := map[string]engine.Team{"teamOne": engine.TeamBlue, "teamTwo": engine.TeamRed}
	for field, side := range sides {
		for _, player := range res.Get("gameData." + field).Array() {
			if player.Get("puuid").String() != puuid {
				continue
			}
			match.TeamSide = side
			if id := int(player.Get("championId").Int()); id > 0 {
				if champ, err := c.Champion(ctx, id); err == nil {
					match.ChampionName = champ.Name
					match.ChampionKey = champ.Key
				}
			}
		}
	}
	return match, nil
}

// ClientInfo refreshes lobby, rank and chat availability. A failed sub-query
// keeps the matching fields of prev and is reported in the returned error.
func (c *Client) ClientInfo(ctx context.Context, prev engine.ClientInfo) (engine.ClientInfo, error) {
	info := prev
	var errs error

	lobby, err := c.Get(ctx, URILobby)
	switch {
	case IsNotFound(err):
		info.QueueID, info.QueueName = 0, ""
		info.PartyID, info.PartySize, info.PartyMax = "", 0, 0
	case err != nil:
		errs = multierr.Append(errs, err)
	default:
		info.QueueID = int(lobby.Get("gameConfig.queueId").Int())
		info.QueueName = QueueName(info.QueueID)
		if lobby.Get("gameConfig.isCustom").Bool() {
			info.QueueName = "Custom Game"
		}
		info.PartyID = lobby.Get("partyId").String()
		info.PartySize = len(lobby.Get("members").Array())
		info.PartyMax = int(lobby.Get("gameConfig.maxLobbySize").Int())
	}

	ranked, err := c.Get(ctx, URIRankedStats)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else {
		entry := ranked.Get("queueMap." + RankedQueueType(info.QueueID))
		info.Rank = engine.Rank{
			Tier:         entry.Get("tier").String(),
			Division:     entry.Get("division").String(),
			LeaguePoints: int(entry.Get("leaguePoints").Int()),
		}
	}

	me, err := c.Get(ctx, URIChatMe)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else {
		info.Availability = me.Get("availability").String()
	}

	return info, errs
}

// DisplayGameMode turns "CLASSIC" into "Classic".
func DisplayGameMode(mode string) string {
	if mode == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ToLower(mode))
}
