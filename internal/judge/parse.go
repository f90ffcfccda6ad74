package judge

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseVerdict extracts a Verdict from free-form oracle text. It accepts a
// bare JSON object or one wrapped in prose or a code fence. A score given as
// a string or float is accepted; a non-list cited_evidence becomes empty.
func ParseVerdict(raw string) (Verdict, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return Verdict{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrInvalidOpinion, err)
	}

	v := Verdict{}
	v.Judge, _ = fields["judge"].(string)
	v.CriterionID, _ = fields["criterion_id"].(string)
	v.Argument, _ = fields["argument"].(string)

	switch s := fields["score"].(type) {
	case float64:
		v.Score = int(math.Round(s))
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Verdict{}, fmt.Errorf("%w: score %q", ErrInvalidOpinion, s)
		}
		v.Score = int(math.Round(n))
	default:
		return Verdict{}, fmt.Errorf("%w: missing score", ErrInvalidOpinion)
	}

	v.CitedEvidence = []string{}
	if list, ok := fields["cited_evidence"].([]any); ok {
		for _, item := range list {
			switch x := item.(type) {
			case string:
				v.CitedEvidence = append(v.CitedEvidence, x)
			case nil:
			default:
				v.CitedEvidence = append(v.CitedEvidence, fmt.Sprint(x))
			}
		}
	}
	return v, nil
}

func extractObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in output", ErrInvalidOpinion)
	}
	return raw[start : end+1], nil
}
