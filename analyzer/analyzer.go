package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/o2lab/ordercheck/config"
	"github.com/o2lab/ordercheck/explorer"
	"github.com/o2lab/ordercheck/report"
	"github.com/o2lab/ordercheck/scenario"
	"github.com/o2lab/ordercheck/trace"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type AnalyzerConfig struct {
	Scenarios []scenario.Scenario
	Explorer  config.ExplorerConfig
	// Parallel bounds how many scenarios are explored at once; zero runs
	// all of them concurrently.
	Parallel   int
	testOutput map[string][]string
}

func NewAnalyzerConfig(names []string, cfg config.Config) (*AnalyzerConfig, error) {
	scenarios, err := scenario.Select(names)
	if err != nil {
		return nil, err
	}
	return &AnalyzerConfig{
		Scenarios: scenarios,
		Explorer:  cfg.Explorer,
	}, nil
}

// SetTestOutput collects violation messages per scenario instead of logging
// them.
func (a *AnalyzerConfig) SetTestOutput(out map[string][]string) {
	a.testOutput = out
}

func (a *AnalyzerConfig) builder(name string) *explorer.Builder {
	return &explorer.Builder{
		MaxPreemptions: a.Explorer.MaxPreemptions,
		MaxBranches:    a.Explorer.MaxBranches,
		MaxIterations:  a.Explorer.MaxIterations,
		Log:            log.WithField("scenario", name),
	}
}

// Run explores every scenario and returns the verdicts in scenario order.
// The error is non-nil only if exploring was interrupted.
func (a *AnalyzerConfig) Run(ctx context.Context) ([]report.Result, error) {
	results := make([]report.Result, len(a.Scenarios))
	g, ctx := errgroup.WithContext(ctx)
	if a.Parallel > 0 {
		g.SetLimit(a.Parallel)
	}
	for i, s := range a.Scenarios {
		i, s := i, s
		g.Go(func() error {
			log.Infof("Exploring %s", s.Name)
			start := time.Now()
			rep, err := a.builder(s.Name).Check(ctx, s.Body)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			results[i] = report.Result{
				Scenario:      s.Name,
				Description:   s.Description,
				ExpectFailure: s.ExpectFailure,
				Passed:        verdict(s, err),
				Duration:      time.Since(start),
				Report:        rep,
				Err:           err,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
		}
		if r.Err != nil {
			a.ReportViolation(r)
		} else if r.ExpectFailure {
			log.Warnf("%s: no execution violated the invariant", r.Scenario)
		}
	}
	log.Infof("Checked %d scenario(s), %d failed", len(results), failed)
	return results, nil
}

func verdict(s scenario.Scenario, err error) bool {
	if s.ExpectFailure {
		return errors.Is(err, scenario.ErrInvariantViolation)
	}
	return err == nil
}

func (a *AnalyzerConfig) ReportViolation(r report.Result) {
	if a.testOutput != nil {
		a.testOutput[r.Scenario] = append(a.testOutput[r.Scenario], r.Err.Error())
		return
	}
	var failure *explorer.Failure
	if r.ExpectFailure {
		log.Infof("%s failed as expected: %v", r.Scenario, r.Err)
		return
	}
	log.Println("========== INVARIANT VIOLATION ==========")
	log.Printf("  %s: %v", r.Scenario, r.Err)
	if errors.As(r.Err, &failure) {
		log.Printf("  Replay: %s", failure.Token)
		log.Println("  Trace:")
		trace.PrintTrace(failure.Trace)
	}
	log.Println("=========================================")
}
