// Client for the hosted text classifier ("the oracle"). The rest of the
// pipeline treats it as an opaque scoring service: text in, normalized score
// out.
package oracle

import (
	"context"
)

// Classification is the oracle's judgment of one text.
type Classification struct {
	// Score is normalized to 0-10; the engine compares it against the
	// configured sensitivity threshold.
	Score float64
	// Categories lists the policy categories the classifier flagged.
	Categories []string
}

type Classifier interface {
	Classify(ctx context.Context, text string) (*Classification, error)

	// Probe performs a trivial end-to-end call, for health checking.
	Probe(ctx context.Context) error
}
