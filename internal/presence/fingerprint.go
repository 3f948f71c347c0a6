package presence

import (
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/DoyleJ11/lol-presence/pkg/types"
)

// encMode uses Core Deterministic Encoding so equal snapshots always hash to
// the same fingerprint.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("presence: CBOR encoder initialization failed: " + err.Error())
	}
}

// Fingerprint is a short stable identifier of a snapshot, used as the status
// endpoint's ETag and in emit logs.
func Fingerprint(s types.Snapshot) string {
	data, err := encMode.Marshal(s)
	if err != nil {
		// Snapshot is strings and ints only
		panic("presence: snapshot encoding failed: " + err.Error())
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
