package rubric

import "strings"

// Route names a repository-derived artifact that can feed a dimension.
type Route string

const (
	RouteHistory     Route = "history"      // commit history
	RouteStructure   Route = "structure"    // orchestration graph wiring
	RouteStateSchema Route = "state_schema" // typed state and reducers
	RouteProgress    Route = "progress"     // development-progress level hint
	RouteToolSafety  Route = "tool_safety"  // unsafe execution scan
)

// Well-known dimension ids that route by id rather than by keyword.
const (
	StateManagementID = "state_management_rigor"
	DevelopmentID     = "development_progress"
	SafeToolID        = "safe_tool_engineering"
	DefaultAccuracyID = "report_accuracy"
)

// Keywords is the tunable keyword table used by Classify. Matching is a
// case-insensitive substring test against the forensic instruction.
type Keywords struct {
	History     []string
	Structure   []string
	StateSchema []string
	ToolSafety  []string
}

// DefaultKeywords returns the keyword table used when a dimension has no tags.
func DefaultKeywords() Keywords {
	return Keywords{
		History:     []string{"git", "commit", "history"},
		Structure:   []string{"graph", "state", "parallel", "reducer"},
		StateSchema: []string{"state", "reducer"},
		ToolSafety:  []string{"sandbox", "subprocess", "shell"},
	}
}

// Classify decides which repository artifacts feed d. Explicit tags win;
// otherwise the forensic instruction is matched against DefaultKeywords.
// An empty result means the dimension gets generic presence evidence.
func Classify(d Dimension) []Route {
	return DefaultKeywords().Classify(d)
}

// Classify is Classify with a custom keyword table.
func (k Keywords) Classify(d Dimension) []Route {
	if len(d.Tags) > 0 {
		return tagRoutes(d.Tags)
	}

	goal := strings.ToLower(d.ForensicInstruction)
	var routes []Route
	if containsAny(goal, k.History) {
		routes = append(routes, RouteHistory)
	}
	if containsAny(goal, k.Structure) {
		routes = append(routes, RouteStructure)
	}
	if containsAny(goal, k.StateSchema) || d.ID == StateManagementID {
		routes = append(routes, RouteStateSchema)
	}
	// Progress and tool safety are exclusive of each other.
	switch {
	case d.ID == DevelopmentID:
		routes = append(routes, RouteProgress)
	case d.ID == SafeToolID || containsAny(goal, k.ToolSafety):
		routes = append(routes, RouteToolSafety)
	}
	return routes
}

// HasRoute reports whether routes contains r.
func HasRoute(routes []Route, r Route) bool {
	for _, x := range routes {
		if x == r {
			return true
		}
	}
	return false
}

func tagRoutes(tags []string) []Route {
	var out []Route
	seen := make(map[Route]bool)
	for _, t := range tags {
		r := Route(strings.ToLower(strings.TrimSpace(t)))
		switch r {
		case RouteHistory, RouteStructure, RouteStateSchema, RouteProgress, RouteToolSafety:
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// architectureKeywords mark dimensions where the pragmatic judge's score
// overrides the median.
var architectureKeywords = []string{"architecture", "orchestration", "graph", "structure", "wiring"}

// IsArchitecture reports whether a dimension name names an
// architecture/orchestration-structure concern.
func IsArchitecture(name string) bool {
	return containsAny(strings.ToLower(name), architectureKeywords)
}

// securityKeywords mark dimensions that get the security-override hint.
var securityKeywords = []string{"security", "safe", "sandbox", "injection"}

// IsSecurity reports whether d is a security-flagged dimension.
func IsSecurity(d Dimension) bool {
	if d.ID == SafeToolID {
		return true
	}
	return containsAny(strings.ToLower(d.ID+" "+d.Name), securityKeywords)
}
