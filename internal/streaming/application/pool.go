package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	parsingapp "health-importer/internal/parsing/application"
)

var (
	errParseTimeout = errors.New("streaming: parse timed out")
	errParsePanic   = errors.New("streaming: parser panicked")
)

type parseResult struct {
	outcome parsingapp.Outcome
	err     error
}

// parseAll parses the known jobs of a chunk. Results keep job order.
func (p *Processor) parseAll(ctx context.Context, jobs []parseJob) []parseResult {
	if p.workers > 1 && len(jobs) > 1 {
		results, err := p.parseConcurrent(ctx, jobs)
		if err == nil {
			return results
		}
		p.logger.WithError(err).Warn("concurrent parse failed, falling back to sequential")
	}
	results := make([]parseResult, len(jobs))
	for i, job := range jobs {
		if job.known {
			results[i] = p.safeParse(job)
		}
	}
	return results
}

func (p *Processor) parseConcurrent(ctx context.Context, jobs []parseJob) ([]parseResult, error) {
	results := make([]parseResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, job := range jobs {
		if !job.known {
			continue
		}
		g.Go(func() error {
			res := p.parseWithTimeout(gctx, job)
			if errors.Is(res.err, errParsePanic) {
				return res.err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// parseWithTimeout bounds one parse. A timed out element is reported as a parse error.
func (p *Processor) parseWithTimeout(ctx context.Context, job parseJob) parseResult {
	done := make(chan parseResult, 1)
	go func() {
		done <- p.safeParse(job)
	}()

	timer := time.NewTimer(p.parseTimeout)
	defer timer.Stop()
	select {
	case res := <-done:
		return res
	case <-timer.C:
		return parseResult{err: fmt.Errorf("%w: %s", errParseTimeout, job.el.Type())}
	case <-ctx.Done():
		return parseResult{err: ctx.Err()}
	}
}

func (p *Processor) safeParse(job parseJob) (res parseResult) {
	defer func() {
		if r := recover(); r != nil {
			res = parseResult{err: fmt.Errorf("%w: %v", errParsePanic, r)}
		}
	}()
	out, err := p.parser.Parse(job.el, job.entry)
	return parseResult{outcome: out, err: err}
}
