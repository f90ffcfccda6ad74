package audit

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"auditor/internal/config"
	"auditor/internal/document"
	"auditor/internal/evidence"
	"auditor/internal/report"
	"auditor/internal/rubric"
	"auditor/internal/store"
)

var _ = Describe("RunAudit", func() {
	var (
		ctx     context.Context
		dir     string
		out     string
		history *store.MemStore
		dims    []string
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		out = filepath.Join(dir, "report.md")
		history = store.NewMemStore()
		r, err := rubric.Default()
		Expect(err).NotTo(HaveOccurred())
		dims = r.IDs()
	})

	auditor := func(insp *fakeInspector, reader fakeReader, o *countingOracle) *Auditor {
		return &Auditor{
			Config:     config.Default(),
			Inspector:  insp,
			Reader:     reader,
			Describer:  fixedDescriber("Parallel detectives fan in to an aggregator."),
			Oracle:     o,
			OracleName: "fake",
			Store:      history,
		}
	}

	Context("when the repository is unreachable and no document is given", func() {
		It("takes the degraded path without consulting the judges", func() {
			o := &countingOracle{}
			res, err := auditor(unreachableRepo(), fakeReader{}, o).Run(ctx, Request{
				RepoURL:    "https://git.invalid/team/swarm.git",
				OutputPath: out,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(o.calls.Load()).To(BeZero())

			rep := res.Report
			Expect(rep.Degraded).To(BeTrue())
			Expect(rep.OverallScore).To(Equal(float64(evidence.MinScore)))
			Expect(rep.Criteria).To(HaveLen(len(dims)))
			for i, c := range rep.Criteria {
				Expect(c.DimensionID).To(Equal(dims[i]))
				Expect(c.FinalScore).To(Equal(evidence.MinScore))
				Expect(c.JudgeOpinions).To(BeEmpty())
				Expect(c.DissentSummary).NotTo(BeNil())
				Expect(*c.DissentSummary).To(ContainSubstring("No deliberation"))
			}

			run, err := history.GetRun(ctx, res.RunID)
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Degraded).To(BeTrue())
			Expect(run.Oracle).To(Equal("fake"))
			Expect(run.ReportPath).To(Equal(out))
		})
	})

	Context("when evidence is collected", func() {
		var (
			insp   *fakeInspector
			reader fakeReader
			doc    string
		)

		BeforeEach(func() {
			insp = healthyRepo(dir)
			doc = writeFile(dir, "report.md", "")
			reader = fakeReader{
				text: "Our StateGraph in src/graph.py fans out to detectives. " +
					"Dialectical synthesis happens in fabricated/missing.py after fan-in.",
				images: []document.Image{{Page: 2, Name: "Im1", MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}},
			}
			out = filepath.Join(dir, "out", "audit.md")
		})

		It("collects one opinion per judge and dimension", func() {
			o := &countingOracle{scores: map[evidence.Judge]int{
				evidence.Prosecutor: 2, evidence.Defense: 4, evidence.TechLead: 3,
			}}
			res, err := auditor(insp, reader, o).Run(ctx, Request{
				RepoURL:      "https://github.com/team/swarm",
				DocumentPath: doc,
				OutputPath:   out,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(o.calls.Load()).To(BeEquivalentTo(3 * len(dims)))

			rep := res.Report
			Expect(rep.Degraded).To(BeFalse())
			Expect(rep.Criteria).To(HaveLen(len(dims)))
			for i, c := range rep.Criteria {
				Expect(c.DimensionID).To(Equal(dims[i]))
				Expect(c.JudgeOpinions).To(HaveLen(3))
				Expect(c.FinalScore).To(Equal(3))
				Expect(c.DissentSummary).To(BeNil())
			}
			Expect(rep.OverallScore).To(BeNumerically("==", 3))
			Expect(rep.DissentCount()).To(BeZero())
		})

		It("writes a report whose headline figures parse back", func() {
			o := &countingOracle{scores: map[evidence.Judge]int{
				evidence.Prosecutor: 3, evidence.Defense: 4, evidence.TechLead: 4,
			}}
			res, err := auditor(insp, reader, o).Run(ctx, Request{
				RepoURL:      "https://github.com/team/swarm",
				DocumentPath: doc,
				OutputPath:   out,
			})
			Expect(err).NotTo(HaveOccurred())

			data, err := os.ReadFile(res.ReportPath)
			Expect(err).NotTo(HaveOccurred())
			sum, err := report.ParseMarkdown(string(data))
			Expect(err).NotTo(HaveOccurred())
			Expect(sum.OverallScore).To(BeNumerically("~", res.Report.OverallScore, 0.005))
			Expect(sum.Dimensions).To(Equal(len(res.Report.Criteria)))
			Expect(sum.RepoURL).To(Equal("https://github.com/team/swarm"))
		})

		It("records dissent when the judges are far apart", func() {
			o := &countingOracle{scores: map[evidence.Judge]int{
				evidence.Prosecutor: 1, evidence.Defense: 5, evidence.TechLead: 3,
			}}
			res, err := auditor(insp, reader, o).Run(ctx, Request{
				RepoURL:      "https://github.com/team/swarm",
				DocumentPath: doc,
				OutputPath:   out,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Report.DissentCount()).To(Equal(len(dims)))
			for _, c := range res.Report.Criteria {
				Expect(c.FinalScore).To(Equal(3))
				Expect(*c.DissentSummary).To(ContainSubstring("Prosecutor=1, Defense=5, TechLead=3"))
			}
		})

		It("substitutes neutral opinions when the oracle keeps failing", func() {
			o := &countingOracle{fail: true}
			res, err := auditor(insp, reader, o).Run(ctx, Request{
				RepoURL:      "https://github.com/team/swarm",
				DocumentPath: doc,
				OutputPath:   out,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(o.calls.Load()).To(BeEquivalentTo(3 * 3 * len(dims)))
			for _, c := range res.Report.Criteria {
				Expect(c.JudgeOpinions).To(HaveLen(3))
				for _, op := range c.JudgeOpinions {
					Expect(op.Score).To(Equal(evidence.NeutralScore))
					Expect(op.Argument).To(ContainSubstring("neutral score assigned"))
				}
			}
		})

		It("audits a pre-supplied checkout without cloning", func() {
			insp.acquireErr = os.ErrPermission
			o := &countingOracle{scores: map[evidence.Judge]int{
				evidence.Prosecutor: 3, evidence.Defense: 3, evidence.TechLead: 3,
			}}
			res, err := auditor(insp, reader, o).Run(ctx, Request{
				RepoPath:   dir,
				OutputPath: filepath.Join(dir, "local.html"),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Report.Degraded).To(BeFalse())
			Expect(res.Report.RepoURL).To(Equal(dir))
			html, err := os.ReadFile(res.ReportPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(html)).To(ContainSubstring("<h1"))
		})
	})

	Context("pre-flight validation", func() {
		It("rejects a request without a repository", func() {
			o := &countingOracle{}
			_, err := auditor(unreachableRepo(), fakeReader{}, o).Run(ctx, Request{OutputPath: out})
			Expect(err).To(MatchError(ErrInvalidInput))
			Expect(out).NotTo(BeAnExistingFile())
		})

		It("rejects a rubric without dimensions", func() {
			path := writeFile(dir, "empty.yaml", "dimensions: []\n")
			_, err := auditor(unreachableRepo(), fakeReader{}, &countingOracle{}).Run(ctx, Request{
				RepoURL:    "https://github.com/team/swarm",
				RubricPath: path,
				OutputPath: out,
			})
			Expect(err).To(MatchError(ErrEmptyRubric))
			Expect(out).NotTo(BeAnExistingFile())
		})

		It("fails fast when the oracle backend lacks credentials", func() {
			cfg := config.Default()
			cfg.Oracle = "genai"
			a := &Auditor{Config: cfg, Inspector: unreachableRepo(), Reader: fakeReader{}}
			_, err := a.Run(ctx, Request{RepoURL: "https://github.com/team/swarm", OutputPath: out})
			Expect(err).To(MatchError(config.ErrMissingCredentials))
			Expect(out).NotTo(BeAnExistingFile())
		})
	})
})
