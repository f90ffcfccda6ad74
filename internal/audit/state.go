package audit

import (
	"auditor/internal/collect"
	"auditor/internal/evidence"
	"auditor/internal/rubric"
)

// State is the run state threaded through the pipeline. Nodes return partial
// States holding only the fields they produce; Merge folds them in.
type State struct {
	RepoURL      string
	RepoPath     string
	DocumentPath string
	RubricPath   string
	Rubric       *rubric.Rubric

	Evidence        evidence.Map
	Opinions        []evidence.Opinion
	RepoFiles       []string
	DocumentText    string
	CriticalFailure bool
	Report          *evidence.Report
}

// Target names the audited repository: the URL, or the local path for
// path-only runs.
func (s State) Target() string {
	if s.RepoURL != "" {
		return s.RepoURL
	}
	return s.RepoPath
}

func (s State) collectInput() collect.Input {
	return collect.Input{
		RepoURL:      s.RepoURL,
		RepoPath:     s.RepoPath,
		DocumentPath: s.DocumentPath,
		Rubric:       s.Rubric,
	}
}

// Merge is the pipeline reducer. Evidence is a key-wise union, opinions are
// concatenated, the failure flag is sticky and scalar outputs take the
// update's value when set. Inputs are never modified.
func Merge(cur, upd State) State {
	out := cur
	out.Evidence = evidence.MergeMaps(cur.Evidence, upd.Evidence)
	out.Opinions = evidence.ConcatOpinions(cur.Opinions, upd.Opinions)
	out.CriticalFailure = cur.CriticalFailure || upd.CriticalFailure
	if upd.RepoPath != "" {
		out.RepoPath = upd.RepoPath
	}
	if len(upd.RepoFiles) > 0 {
		out.RepoFiles = append([]string(nil), upd.RepoFiles...)
	}
	if upd.DocumentText != "" {
		out.DocumentText = upd.DocumentText
	}
	if upd.Report != nil {
		out.Report = upd.Report
	}
	return out
}
