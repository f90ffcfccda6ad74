package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"auditor/internal/evidence"
	"auditor/internal/rubric"
)

// DefaultMaxAttempts is the oracle attempt bound per dimension.
const DefaultMaxAttempts = 3

// Bench runs one persona across all dimensions.
type Bench struct {
	Oracle      Oracle
	MaxAttempts int
	// Parallel bounds concurrent dimensions; 0 or less means unbounded.
	Parallel int
	Log      *slog.Logger
}

func (b *Bench) logger() *slog.Logger {
	if b.Log != nil {
		return b.Log
	}
	return slog.Default()
}

func (b *Bench) attempts() int {
	if b.MaxAttempts > 0 {
		return b.MaxAttempts
	}
	return DefaultMaxAttempts
}

// Deliberate returns exactly one Opinion per dimension of r for judge j, in
// rubric order. Oracle failures never abort: they end in a fallback Opinion.
// Only context cancellation is returned as an error.
func (b *Bench) Deliberate(ctx context.Context, j evidence.Judge, r *rubric.Rubric, ev evidence.Map) ([]evidence.Opinion, error) {
	log := b.logger().With("judge", string(j))
	out := make([]evidence.Opinion, len(r.Dimensions))

	g, gctx := errgroup.WithContext(ctx)
	if b.Parallel > 0 {
		g.SetLimit(b.Parallel)
	}
	for i, d := range r.Dimensions {
		g.Go(func() error {
			op, err := b.Opine(gctx, j, r, d, ev[d.ID])
			if err != nil {
				return err
			}
			out[i] = op
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info("judge deliberated", "dimensions", len(r.Dimensions), "opinions", len(out))
	return out, nil
}

// Opine invokes the oracle for one dimension with validation, retry and
// fallback.
func (b *Bench) Opine(ctx context.Context, j evidence.Judge, r *rubric.Rubric, d rubric.Dimension, list []evidence.Evidence) (evidence.Opinion, error) {
	req := Request{
		Judge:     j,
		Dimension: d,
		Evidence:  list,
		System:    Persona(j),
		Prompt:    BuildPrompt(d, RuleHints(r, d), list),
	}
	log := b.logger().With("judge", string(j), "dimension", d.ID)

	var lastErr error
	for attempt := 1; attempt <= b.attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return evidence.Opinion{}, err
		}
		req.Attempt = attempt
		v, err := b.Oracle.Score(ctx, req)
		if err == nil {
			var op evidence.Opinion
			op, err = toOpinion(j, d.ID, v)
			if err == nil {
				log.Debug("opinion accepted", "attempt", attempt, "score", op.Score)
				return op, nil
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return evidence.Opinion{}, ctxErr
		}
		lastErr = err
		log.Warn("oracle attempt failed", "attempt", attempt, "error", err)
	}
	log.Warn("oracle attempts exhausted, using fallback", "attempts", b.attempts())
	return Fallback(j, d.ID, lastErr), nil
}

// toOpinion validates v and pins persona and criterion to the caller's.
func toOpinion(j evidence.Judge, criterionID string, v Verdict) (evidence.Opinion, error) {
	if v.Score == 0 {
		return evidence.Opinion{}, fmt.Errorf("%w: missing score", ErrInvalidOpinion)
	}
	if v.Argument == "" {
		return evidence.Opinion{}, fmt.Errorf("%w: empty argument", ErrInvalidOpinion)
	}
	cited := v.CitedEvidence
	if cited == nil {
		cited = []string{}
	}
	return evidence.Opinion{
		Judge:         j,
		CriterionID:   criterionID,
		Score:         evidence.ClampScore(v.Score),
		Argument:      v.Argument,
		CitedEvidence: cited,
	}, nil
}

// Fallback is the neutral Opinion substituted after retries are exhausted.
func Fallback(j evidence.Judge, criterionID string, lastErr error) evidence.Opinion {
	msg := "unknown error"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return evidence.Opinion{
		Judge:         j,
		CriterionID:   criterionID,
		Score:         evidence.NeutralScore,
		Argument:      "Oracle output could not be parsed into a valid opinion; neutral score assigned. Last error: " + msg,
		CitedEvidence: []string{},
	}
}
