package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/karnagge/bitcoin-trading-bot/internal/model"
)

// Job is one independent run of RunBatch.
type Job struct {
	Symbol string
	Bars   []model.Bar
	Config Config
}

// RunBatch executes jobs with at most parallelism runs in flight. Reports are
// returned in job order. The first failing job cancels the jobs not yet
// started and its error is returned.
func (r *Runner) RunBatch(ctx context.Context, jobs []Job, parallelism int) ([]*Report, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	reports := make([]*Report, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := r.Run(gctx, job.Symbol, job.Bars, job.Config)
			if err != nil {
				return fmt.Errorf("job %d (%s): %w", i, job.Symbol, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
