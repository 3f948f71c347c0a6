package lcu

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

type EventType string

const (
	EventCreate EventType = "Create"
	EventUpdate EventType = "Update"
	EventDelete EventType = "Delete"
)

// Event is one decoded JSON API event from the client's event stream.
type Event struct {
	Topic string
	URI   string
	Type  EventType
	Data  json.RawMessage
}

// TopicForURI maps a REST path to the event stream topic that reports changes
// to it.
func TopicForURI(uri string) string {
	return "OnJsonApiEvent" + strings.ReplaceAll(uri, "/", "_")
}

// Topics are the event streams the presence depends on.
func Topics() []string {
	return []string{
		TopicForURI(URIGameflowPhase),
		TopicForURI(URICurrentChampion),
		TopicForURI(URILobby),
		TopicForURI(URIChatMe),
		TopicForURI(URIRankedStats),
	}
}

// DecodeEvent reads the {uri, eventType, data} payload of an event frame.
func DecodeEvent(topic string, payload []byte) (Event, error) {
	if !gjson.ValidBytes(payload) {
		return Event{}, fmt.Errorf("event %s: invalid payload", topic)
	}
	res := gjson.ParseBytes(payload)
	if !res.IsObject() {
		return Event{}, fmt.Errorf("event %s: payload is not an object", topic)
	}

	ev := Event{
		Topic: topic,
		URI:   res.Get("uri").String(),
		Type:  EventType(res.Get("eventType").String()),
	}
	if data := res.Get("data"); data.Exists() {
		ev.Data = json.RawMessage(data.Raw)
	}
	return ev, nil
}
