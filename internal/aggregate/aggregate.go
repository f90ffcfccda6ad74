// Package aggregate enriches the merged collector evidence: it cross-checks
// document path claims against the repository inventory, links findings
// between related dimensions, back-fills empty dimensions with placeholders
// and decides whether the run is a critical failure.
package aggregate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"auditor/internal/evidence"
	"auditor/internal/rubric"
)

// CrossLinkCap bounds cross-link confidence so linking alone can never turn
// a failed run into a successful one.
const CrossLinkCap = 0.7

// Options configures enrichment.
type Options struct {
	// AccuracyDimension receives the path cross-reference.
	AccuracyDimension string
	// CrossLinks maps a dimension to the related dimensions linked into it.
	CrossLinks map[string][]string
	// LinkLimit bounds how many related findings one cross-link quotes.
	LinkLimit int
	// LinkExcerpt bounds each quoted finding, in bytes.
	LinkExcerpt int
}

// OptionsFrom reads enrichment options from the rubric's aggregation block.
func OptionsFrom(r *rubric.Rubric) Options {
	o := Options{AccuracyDimension: rubric.DefaultAccuracyID, LinkLimit: 3, LinkExcerpt: 300}
	if r != nil && r.Aggregation != nil {
		if r.Aggregation.AccuracyDimension != "" {
			o.AccuracyDimension = r.Aggregation.AccuracyDimension
		}
		o.CrossLinks = r.Aggregation.CrossLinks
	}
	return o
}

// Input is the merged collector output.
type Input struct {
	Rubric       *rubric.Rubric
	Evidence     evidence.Map
	RepoFiles    []string
	DocumentText string
}

// Result carries only the records the aggregator adds, so that merging it
// into run state appends after existing evidence, plus the gate decision.
type Result struct {
	Added           evidence.Map
	CriticalFailure bool
}

// Aggregator applies enrichment in a fixed order: cross-reference,
// cross-link, placeholder back-fill, critical-failure determination.
type Aggregator struct {
	Options Options
	Log     *slog.Logger
}

// New returns an Aggregator configured from r.
func New(r *rubric.Rubric, log *slog.Logger) *Aggregator {
	return &Aggregator{Options: OptionsFrom(r), Log: log}
}

func (a *Aggregator) logger() *slog.Logger {
	if a.Log != nil {
		return a.Log
	}
	return slog.Default()
}

// Aggregate runs every enrichment step over in.
func (a *Aggregator) Aggregate(in Input) Result {
	added := evidence.Map{}
	dims := map[string]rubric.Dimension{}
	if in.Rubric != nil {
		for _, d := range in.Rubric.Dimensions {
			dims[d.ID] = d
		}
	}

	if d, ok := dims[a.Options.AccuracyDimension]; ok {
		if e, ok := CrossReference(d.ForensicInstruction, in.DocumentText, in.RepoFiles); ok {
			added[d.ID] = append(added[d.ID], e)
		}
	}

	current := evidence.MergeMaps(in.Evidence, added)
	for _, target := range sortedKeys(a.Options.CrossLinks) {
		d, ok := dims[target]
		if !ok {
			continue
		}
		if e, ok := a.crossLink(d, a.Options.CrossLinks[target], current); ok {
			added[target] = append(added[target], e)
		}
	}

	current = evidence.MergeMaps(in.Evidence, added)
	placeholders := 0
	if in.Rubric != nil {
		for _, d := range in.Rubric.Dimensions {
			if len(current[d.ID]) == 0 {
				added[d.ID] = append(added[d.ID], evidence.Placeholder(d.ForensicInstruction))
				placeholders++
			}
		}
	}

	current = evidence.MergeMaps(in.Evidence, added)
	critical := !current.HasSubstantive()
	a.logger().Info("evidence aggregated",
		"evidence", current.Count(), "added", added.Count(),
		"placeholders", placeholders, "critical_failure", critical)
	return Result{Added: added, CriticalFailure: critical}
}

// crossLink summarizes the strongest substantive findings of related
// dimensions into one Evidence for d.
func (a *Aggregator) crossLink(d rubric.Dimension, related []string, m evidence.Map) (evidence.Evidence, bool) {
	type finding struct {
		dim string
		e   evidence.Evidence
	}
	var fs []finding
	for _, r := range related {
		if r == d.ID {
			continue
		}
		for _, e := range m[r] {
			if e.Found && e.Confidence > 0 && !e.IsPlaceholder() {
				fs = append(fs, finding{r, e})
			}
		}
	}
	if len(fs) == 0 {
		return evidence.Evidence{}, false
	}
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].e.Confidence > fs[j].e.Confidence })
	if a.Options.LinkLimit > 0 && len(fs) > a.Options.LinkLimit {
		fs = fs[:a.Options.LinkLimit]
	}

	var lines, sources []string
	seen := map[string]bool{}
	for _, f := range fs {
		summary := f.e.Rationale
		if t := f.e.Text(); t != "" {
			summary = t
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", f.dim, evidence.Truncate(oneLine(summary), a.Options.LinkExcerpt)))
		if !seen[f.dim] {
			seen[f.dim] = true
			sources = append(sources, f.dim)
		}
	}
	conf := min(m.MaxConfidence(d.ID), CrossLinkCap)
	return evidence.Evidence{
		Goal:       d.ForensicInstruction,
		Found:      conf > 0,
		Content:    evidence.Content(strings.Join(lines, "\n")),
		Location:   evidence.AggregatedLocation,
		Rationale:  "Cross-linked findings from related dimensions: " + strings.Join(sources, ", "),
		Confidence: conf,
	}, true
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
