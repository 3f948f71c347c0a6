package types

import (
	presence "github.com/DoyleJ11/lol-presence/pkg/types"
)

// StatusMessage is the body of GET /presence.
type StatusMessage struct {
	Phase       string            `json:"phase"`
	Connected   bool              `json:"connected"`
	Published   bool              `json:"published"`
	Snapshot    presence.Snapshot `json:"snapshot"`
	Fingerprint string            `json:"fingerprint"`
}

type ErrorMessage struct {
	Error string `json:"error"`
}
