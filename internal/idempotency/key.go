package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ncasillas/txpilot/internal/intent"
)

// Fingerprint is the deterministic identity of one user intent within
// one time bucket. Two identical intents in the same bucket always get
// the same fingerprint, on any host, with no store lookup.
type Fingerprint struct {
	Key      string
	PromptID string
}

// NewFingerprint hashes the fields that make an intent "the same
// request": user, kind, source chain, recipient, amount, asset, and the
// window bucket. The discrete floor(now/window) bucket means two
// identical intents straddling a bucket edge are not caught; that edge
// case is accepted in exchange for a store-independent key.
func NewFingerprint(userID string, n intent.Normalized, window time.Duration, now time.Time) Fingerprint {
	if window <= 0 {
		window = 5 * time.Minute
	}
	bucket := now.UnixMilli() / window.Milliseconds()

	asset := "native"
	if tok, ok := intent.SourceToken(n); ok {
		asset = strings.ToLower(tok.Address)
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s|%s|%d",
		userID,
		n.Kind(),
		n.SourceChain(),
		strings.ToLower(n.Recipient().Hex()),
		n.Amount().String(),
		asset,
		bucket,
	)
	key := hex.EncodeToString(h.Sum(nil))
	return Fingerprint{Key: key, PromptID: "prompt_" + key[:16]}
}
