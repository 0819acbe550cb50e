package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome pairs a Run result with its error.
type Outcome struct {
	Result Result
	Err    error
}

// RunAll runs independent inputs concurrently, at most limit at a time
// (limit <= 0 means unbounded). Outcomes are returned in input order. One
// failing input does not stop the others; cancelling ctx stops them all.
func (p *Pipeline) RunAll(ctx context.Context, inputs []Input, limit int) []Outcome {
	outcomes := make([]Outcome, len(inputs))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, in := range inputs {
		g.Go(func() error {
			res, err := p.Run(ctx, in)
			outcomes[i] = Outcome{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
