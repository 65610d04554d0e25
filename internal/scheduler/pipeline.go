package scheduler

import (
	"context"

	"github.com/filmdata/critic-harvester/internal/harvest"
	"github.com/filmdata/critic-harvester/internal/resolver"
)

// PipelineFunc adapts a plain function to the Pipeline interface.
type PipelineFunc func(ctx context.Context, q harvest.Query) (harvest.Result, error)

// Run implements Pipeline.
func (f PipelineFunc) Run(ctx context.Context, q harvest.Query) (harvest.Result, error) {
	return f(ctx, q)
}

// HarvestPipeline is the standard resolve-then-harvest task.
type HarvestPipeline struct {
	Resolver *resolver.Resolver
	Engine   *harvest.Engine
	Provider harvest.Provider
	KeyFn    harvest.KeyFunc
}

// Run implements Pipeline.
func (p *HarvestPipeline) Run(ctx context.Context, q harvest.Query) (harvest.Result, error) {
	entity, err := p.Resolver.Resolve(ctx, q, p.Provider)
	if err != nil {
		return harvest.Result{}, err
	}
	return p.Engine.Harvest(ctx, entity, p.Provider, p.KeyFn)
}
