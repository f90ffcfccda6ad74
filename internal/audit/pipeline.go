package audit

import (
	_ "embed"
	"fmt"

	"auditor/internal/framework"
)

//go:embed pipeline.yaml
var pipelineYAML []byte

// PipelineDef returns the audit pipeline definition.
func PipelineDef() (*framework.PipelineDef, error) {
	def, err := framework.LoadPipeline(pipelineYAML)
	if err != nil {
		return nil, fmt.Errorf("load audit pipeline: %w", err)
	}
	return def, nil
}

func (st *stages) graph(opts ...framework.Option) (*framework.Graph[State], error) {
	def, err := PipelineDef()
	if err != nil {
		return nil, err
	}
	return framework.Build(def, st.nodes(), st.routers(), Merge, opts...)
}
