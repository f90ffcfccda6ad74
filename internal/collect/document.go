package collect

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"auditor/internal/document"
	"auditor/internal/evidence"
	"auditor/internal/rubric"
)

// DefaultQuestion is asked when a dimension has no forensic instruction.
const DefaultQuestion = "What is the main topic?"

const noDocument = "No document path provided."

// Document collects evidence for document-text dimensions by querying a
// chunked store once per dimension.
type Document struct {
	Reader document.Reader
	Log    *slog.Logger
}

func (c *Document) Name() string { return "doc_analyst" }

// Collect ingests the document and issues one query per dimension. The full
// extracted text is returned alongside for the aggregator's cross-reference.
func (c *Document) Collect(ctx context.Context, in Input) Output {
	log := logger(c.Log, c.Name())
	dims := dimensions(in, rubric.TargetDocument)
	if len(dims) == 0 {
		return Output{Evidence: evidence.Map{}}
	}
	if in.DocumentPath == "" {
		return Output{Evidence: missingAll(dims, "", noDocument)}
	}

	store, err := c.Reader.Ingest(ctx, in.DocumentPath)
	if err != nil {
		log.Warn("document ingest failed", "path", in.DocumentPath, "error", err)
		return Output{Evidence: missingAll(dims, in.DocumentPath, err.Error())}
	}

	out := make(evidence.Map, len(dims))
	for _, d := range dims {
		excerpt := store.Query(QuestionFor(d))
		found := excerpt != "" && excerpt != document.NoRelevant
		rationale := "No or limited relevant content."
		if found {
			rationale = d.SuccessPattern
		}
		out[d.ID] = []evidence.Evidence{{
			Goal:       d.ForensicInstruction,
			Found:      found,
			Content:    evidence.Content(capBytes(excerpt, ContentLimit)),
			Location:   in.DocumentPath,
			Rationale:  rationale,
			Confidence: confidence(found, 0.8, 0.3),
		}}
		log.Debug("dimension queried", "dimension", d.ID, "found", found)
	}
	log.Info("document collected", "dimensions", len(dims), "chunks", len(store.Chunks))
	return Output{Evidence: out, DocumentText: store.Text()}
}

// QuestionFor forms the retrieval query: the first clause (up to the first
// period) of the forensic instruction.
func QuestionFor(d rubric.Dimension) string {
	goal := strings.TrimSpace(d.ForensicInstruction)
	if goal == "" {
		return DefaultQuestion
	}
	q, _, _ := strings.Cut(goal, ".")
	return q
}

// capBytes cuts s to at most n bytes on a rune boundary without adding an
// ellipsis.
func capBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// VisionQuestion is asked of the first extracted image.
const VisionQuestion = "Describe the diagram flow: parallel branches, aggregation, or linear pipeline?"

// Images collects evidence for document-image dimensions with the vision
// oracle.
type Images struct {
	Reader    document.Reader
	Describer document.Describer
	Log       *slog.Logger
}

func (c *Images) Name() string { return "vision_inspector" }

func (c *Images) Collect(ctx context.Context, in Input) Output {
	log := logger(c.Log, c.Name())
	dims := dimensions(in, rubric.TargetImages)
	if len(dims) == 0 {
		return Output{Evidence: evidence.Map{}}
	}
	if in.DocumentPath == "" {
		return Output{Evidence: missingAll(dims, "", noDocument)}
	}

	imgs, err := c.Reader.ExtractImages(ctx, in.DocumentPath)
	if err != nil {
		log.Warn("image extraction failed", "path", in.DocumentPath, "error", err)
		return Output{Evidence: missingAll(dims, in.DocumentPath, err.Error())}
	}
	if len(imgs) == 0 {
		return Output{Evidence: missingAll(dims, in.DocumentPath, "No images extracted from document.")}
	}

	// One description serves every image dimension.
	desc, err := c.Describer.Describe(ctx, imgs[0], VisionQuestion)
	if err != nil {
		log.Warn("vision describe failed", "error", err)
		return Output{Evidence: missingAll(dims, in.DocumentPath, "vision analysis failed: "+err.Error())}
	}
	out := make(evidence.Map, len(dims))
	for _, d := range dims {
		out[d.ID] = []evidence.Evidence{{
			Goal:       d.ForensicInstruction,
			Found:      true,
			Content:    evidence.Content(capBytes(desc, ContentLimit)),
			Location:   in.DocumentPath,
			Rationale:  "Image extracted and analyzed.",
			Confidence: 0.7,
		}}
	}
	log.Info("images collected", "dimensions", len(dims), "images", len(imgs))
	return Output{Evidence: out}
}
