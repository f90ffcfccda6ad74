package aggregate

import (
	"fmt"
	"regexp"
	"strings"

	"auditor/internal/evidence"
)

var (
	urlRe = regexp.MustCompile(`(?i)\b(?:https?|git|ssh)://\S+`)
	// A path claim is an optional run of directories followed by a file name
	// with a known source or config extension.
	pathRe = regexp.MustCompile(`(?:[A-Za-z0-9_.-]+/)*[A-Za-z0-9_-][A-Za-z0-9_.-]*\.(?:py|go|js|ts|tsx|jsx|rs|java|rb|sh|md|json|ya?ml|toml|cfg|ini|txt|ipynb|sql|html|css)\b`)
)

// ExtractPathClaims returns the distinct path-like tokens in text, in order
// of first appearance. URLs are removed first so hosts and URL paths are not
// mistaken for repository files.
func ExtractPathClaims(text string) []string {
	text = urlRe.ReplaceAllString(text, " ")
	var out []string
	seen := map[string]bool{}
	for _, m := range pathRe.FindAllString(text, -1) {
		m = strings.TrimPrefix(m, "./")
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Match kinds, strongest first.
const (
	MatchExact     = "exact"
	MatchFold      = "case-insensitive"
	MatchSuffix    = "suffix"
	MatchSubstring = "substring"
)

// MatchPath tests claim against files with four layers: exact, exact
// ignoring case, claim as a path suffix of a real file, and claim as a
// substring of a real path. It returns the first layer that matched.
func MatchPath(claim string, files []string) (string, bool) {
	for _, f := range files {
		if f == claim {
			return MatchExact, true
		}
	}
	for _, f := range files {
		if strings.EqualFold(f, claim) {
			return MatchFold, true
		}
	}
	lc := strings.ToLower(claim)
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f), "/"+lc) {
			return MatchSuffix, true
		}
	}
	for _, f := range files {
		if strings.Contains(strings.ToLower(f), lc) {
			return MatchSubstring, true
		}
	}
	return "", false
}

// CrossCheck splits claims into those found in files and those not.
func CrossCheck(claims, files []string) (verified, unverified []string) {
	for _, c := range claims {
		if _, ok := MatchPath(c, files); ok {
			verified = append(verified, c)
		} else {
			unverified = append(unverified, c)
		}
	}
	return verified, unverified
}

// CrossReference builds the accuracy Evidence for the document's path claims.
// It reports false when the document makes no path claims. An empty
// inventory means the repository could not be read, so no claim is judged.
func CrossReference(goal, text string, files []string) (evidence.Evidence, bool) {
	claims := ExtractPathClaims(text)
	if len(claims) == 0 {
		return evidence.Evidence{}, false
	}
	if len(files) == 0 {
		return evidence.Evidence{
			Goal:       goal,
			Found:      false,
			Content:    evidence.Content(fmt.Sprintf("Unchecked (%d): %s", len(claims), strings.Join(claims, ", "))),
			Location:   evidence.AggregatedLocation,
			Rationale:  fmt.Sprintf("Repository file inventory unavailable; %d path claims could not be checked.", len(claims)),
			Confidence: 0.2,
		}, true
	}
	verified, unverified := CrossCheck(claims, files)

	var b strings.Builder
	fmt.Fprintf(&b, "Verified (%d): %s\n", len(verified), strings.Join(verified, ", "))
	fmt.Fprintf(&b, "Unverified, potential fabrication (%d): %s", len(unverified), strings.Join(unverified, ", "))

	return evidence.Evidence{
		Goal:       goal,
		Found:      len(verified) > 0,
		Content:    evidence.Content(b.String()),
		Location:   evidence.AggregatedLocation,
		Rationale:  fmt.Sprintf("%d of %d path claims verified against %d repository files.", len(verified), len(claims), len(files)),
		Confidence: 0.8,
	}, true
}
