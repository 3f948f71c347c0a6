package types

// Snapshot is the Discord-facing view of the player's status. It only holds
// comparable fields so two snapshots can be compared with ==.
//
//	details:          "Playing Ahri"
//	state:            "5/2/7 · 143 CS · Lvl 14"
//	large_image:      champion tile or "logo"
//	small_image:      "rank_gold"
//	start_timestamp:  unix seconds the match started
//	party:            { id, size, max }
type Snapshot struct {
	Details        string `json:"details,omitempty"`
	State          string `json:"state,omitempty"`
	LargeImageKey  string `json:"large_image_key,omitempty"`
	LargeImageText string `json:"large_image_text,omitempty"`
	SmallImageKey  string `json:"small_image_key,omitempty"`
	SmallImageText string `json:"small_image_text,omitempty"`
	StartTimestamp int64  `json:"start_timestamp,omitempty"`
	Party          Party  `json:"party,omitzero"`
}

type Party struct {
	ID   string `json:"id,omitempty"`
	Size int    `json:"size"`
	Max  int    `json:"max"`
}

// IsZero reports whether the snapshot clears the presence.
func (s Snapshot) IsZero() bool {
	return s == Snapshot{}
}

func (p Party) IsZero() bool {
	return p == Party{}
}
