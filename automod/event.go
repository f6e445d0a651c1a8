package automod

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Verdict values for a processed message.
const (
	VerdictAllow     = "allow"
	VerdictViolation = "violation"
)

// MessageEvent is one inbound channel message. Ephemeral: it exists only for
// the duration of pipeline processing, and raw text is never persisted after
// a decision is reached.
type MessageEvent struct {
	Channel     string
	UserID      string // normalized (lower-cased) nick
	DisplayName string // nick as presented on the wire
	Text        string
	UserIsOp    bool
	ReceivedAt  time.Time
}

// Fingerprint returns a stable digest of normalized message text, used as
// the decision cache key. Normalization collapses whitespace and case so
// trivially re-typed messages hit the same cache entry.
func Fingerprint(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
