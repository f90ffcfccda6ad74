package repo

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// SafetyFinding is one line matching an unsafe execution pattern.
type SafetyFinding struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Pattern string `json:"pattern"`
	Text    string `json:"text"`
}

func (f SafetyFinding) String() string {
	return fmt.Sprintf("%s:%d %s", f.Path, f.Line, f.Pattern)
}

type unsafePattern struct {
	name string
	re   *regexp.Regexp
}

var unsafePatterns = []unsafePattern{
	{"os.system(", regexp.MustCompile(`\bos\.system\s*\(`)},
	{"shell=True", regexp.MustCompile(`\bshell\s*=\s*True\b`)},
	{"eval(", regexp.MustCompile(`(^|[^.\w])eval\s*\(`)},
	{`exec.Command("sh", "-c")`, regexp.MustCompile(`exec\.Command(Context)?\([^)]*"(ba)?sh"\s*,\s*"-c"`)},
}

var scannedExt = map[string]bool{
	".py": true, ".go": true, ".sh": true, ".js": true, ".ts": true, ".rb": true,
}

const maxScanBytes = 1 << 20

// ScanSafety scans the listed files under root for unsafe execution
// patterns. Only source files up to 1 MiB are read; files that cannot be
// opened are skipped.
func ScanSafety(ctx context.Context, root string, files []string) ([]SafetyFinding, error) {
	var findings []SafetyFinding
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !scannedExt[strings.ToLower(filepath.Ext(rel))] {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		fi, err := os.Stat(abs)
		if err != nil || fi.IsDir() || fi.Size() > maxScanBytes {
			continue
		}
		found, err := scanFile(abs, rel)
		if err != nil {
			continue
		}
		findings = append(findings, found...)
	}
	return findings, nil
}

func scanFile(abs, rel string) ([]SafetyFinding, error) {
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []SafetyFinding
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxScanBytes)
	line := 0
	for sc.Scan() {
		line++
		txt := sc.Text()
		trimmed := strings.TrimSpace(txt)
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		for _, p := range unsafePatterns {
			if p.re.MatchString(txt) {
				out = append(out, SafetyFinding{Path: rel, Line: line, Pattern: p.name, Text: trimmed})
			}
		}
	}
	return out, sc.Err()
}
