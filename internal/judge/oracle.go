// Package judge runs the three scoring personas over every rubric dimension.
// The reasoning itself is delegated to an Oracle; this package owns the
// prompt contract, output validation, the retry policy and the neutral
// fallback.
package judge

import (
	"context"
	"errors"

	"auditor/internal/evidence"
	"auditor/internal/rubric"
)

// ErrInvalidOpinion is returned when oracle output fails validation. It is
// retried by the Bench and never escapes it.
var ErrInvalidOpinion = errors.New("judge: invalid opinion")

// Request is one oracle invocation: a persona evaluating a dimension.
type Request struct {
	Judge     evidence.Judge
	Dimension rubric.Dimension
	// Evidence is the dimension's accumulated evidence, unsummarized, for
	// backends that score directly from records.
	Evidence []evidence.Evidence
	// System is the persona instruction.
	System string
	// Prompt is the user-facing prompt with dimension context, rule hints and
	// the bounded evidence summary.
	Prompt string
	// Attempt counts from 1.
	Attempt int
}

// Verdict is the raw structured result an oracle returns. Judge and
// CriterionID, if set by the oracle, are ignored.
type Verdict struct {
	Judge         string   `json:"judge,omitempty"`
	CriterionID   string   `json:"criterion_id,omitempty"`
	Score         int      `json:"score"`
	Argument      string   `json:"argument"`
	CitedEvidence []string `json:"cited_evidence"`
}

// Oracle scores one dimension from one persona's viewpoint. Implementations
// may fail or return malformed output; the Bench retries.
type Oracle interface {
	Score(ctx context.Context, req Request) (Verdict, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, req Request) (Verdict, error)

func (f OracleFunc) Score(ctx context.Context, req Request) (Verdict, error) { return f(ctx, req) }
