// Package httpapi serves a small local status page for the running
// presence.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/DoyleJ11/lol-presence/internal/presence"
	"github.com/DoyleJ11/lol-presence/internal/tracker"
	"github.com/DoyleJ11/lol-presence/internal/types"
)

// Viewer is satisfied by *tracker.Tracker.
type Viewer interface {
	View(ctx context.Context) (tracker.View, error)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Presence reports the last published snapshot. The ETag is the snapshot
// fingerprint so pollers can skip unchanged bodies.
func Presence(v Viewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := v.View(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, types.ErrorMessage{Error: err.Error()})
			return
		}

		fingerprint := presence.Fingerprint(view.Snapshot)
		etag := `"` + fingerprint + `"`
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		writeJSON(w, http.StatusOK, types.StatusMessage{
			Phase:       string(view.State.Phase),
			Connected:   view.Connected,
			Published:   view.Published,
			Snapshot:    view.Snapshot,
			Fingerprint: fingerprint,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
