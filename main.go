package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/felixge/fgprof"
	"github.com/o2lab/ordercheck/analyzer"
	"github.com/o2lab/ordercheck/config"
	"github.com/o2lab/ordercheck/explorer"
	"github.com/o2lab/ordercheck/history"
	"github.com/o2lab/ordercheck/native"
	"github.com/o2lab/ordercheck/report"
	"github.com/o2lab/ordercheck/scenario"
	"github.com/o2lab/ordercheck/stats"
	"github.com/o2lab/ordercheck/trace"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "ordercheck"
	app.Usage = "exhaustively check memory-ordering scenarios"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "debug", Usage: "Prints debug messages."},
		cli.BoolFlag{Name: "trace", Usage: "Prints every modelled access and schedule."},
		cli.BoolFlag{Name: "collectStats", Usage: "Collect exploration statistics."},
		cli.StringFlag{Name: "config", Value: config.DefaultFile, Usage: "yml configuration file"},
		cli.StringFlag{Name: "pprof", Usage: "serve fgprof profiles on this address"},
	}
	app.Before = func(c *cli.Context) error {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
		if c.GlobalBool("debug") {
			log.SetLevel(log.DebugLevel)
		}
		if c.GlobalBool("trace") {
			log.SetLevel(log.TraceLevel)
		}
		stats.CollectStats = c.GlobalBool("collectStats")
		if addr := c.GlobalString("pprof"); addr != "" {
			http.DefaultServeMux.Handle("/debug/fgprof", fgprof.Handler())
			go func() {
				log.Infof("Serving fgprof on http://%s/debug/fgprof", addr)
				if err := http.ListenAndServe(addr, nil); err != nil {
					log.Errorf("pprof server: %v", err)
				}
			}()
		}
		return nil
	}
	app.After = func(c *cli.Context) error {
		if stats.CollectStats {
			stats.ShowStats()
		}
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "check",
			Usage:     "explore every execution of the given scenarios (all by default)",
			ArgsUsage: "[scenario...]",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "maxPreemptions", Usage: "bound on preemptions per execution, 0 for none"},
				cli.IntFlag{Name: "maxBranches", Usage: "bound on choices per execution"},
				cli.IntFlag{Name: "maxIterations", Usage: "bound on executions, 0 for none"},
				cli.IntFlag{Name: "parallel", Usage: "scenarios explored at once, 0 for all"},
				cli.StringFlag{Name: "format", Usage: "report format: text, json or html"},
				cli.StringFlag{Name: "history", Usage: "sqlite database recording verdicts"},
				cli.BoolFlag{Name: "noColor", Usage: "plain text output"},
			},
			Action: check,
		},
		{
			Name:      "replay",
			Usage:     "re-run one execution from its replay token",
			ArgsUsage: "scenario token",
			Action:    replay,
		},
		{
			Name:  "stress",
			Usage: "run acqrel natively on goroutines",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "iterations", Usage: "native runs"},
				cli.IntFlag{Name: "workers", Usage: "concurrent workers, 0 for GOMAXPROCS"},
			},
			Action: stress,
		},
		{
			Name:      "history",
			Usage:     "list recorded verdicts",
			ArgsUsage: "[scenario]",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "history", Usage: "sqlite database recording verdicts"},
				cli.IntFlag{Name: "limit", Value: 20, Usage: "rows to show"},
			},
			Action: listHistory,
		},
		{
			Name:  "list",
			Usage: "list the registered scenarios",
			Action: func(c *cli.Context) error {
				for _, s := range scenario.All() {
					fmt.Fprintf(c.App.Writer, "%-16s %s\n", s.Name, s.Description)
				}
				return nil
			},
		},
	}
	return app
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// loadConfig reads the yml file and applies the command's flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.DecodeYmlFile(c.GlobalString("config"))
	if err != nil {
		return cfg, err
	}
	if c.IsSet("maxPreemptions") {
		cfg.Explorer.MaxPreemptions = c.Int("maxPreemptions")
	}
	if c.IsSet("maxBranches") {
		cfg.Explorer.MaxBranches = c.Int("maxBranches")
	}
	if c.IsSet("maxIterations") {
		cfg.Explorer.MaxIterations = c.Int("maxIterations")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.IsSet("noColor") {
		cfg.Output.Color = false
	}
	if c.IsSet("history") {
		cfg.History.Path = c.String("history")
	}
	if c.IsSet("iterations") {
		cfg.Stress.Iterations = c.Int("iterations")
	}
	if c.IsSet("workers") {
		cfg.Stress.Workers = c.Int("workers")
	}
	return cfg, cfg.Validate()
}

func check(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	names := []string(c.Args())
	if len(names) == 0 {
		names = cfg.Scenarios
	}
	a, err := analyzer.NewAnalyzerConfig(names, cfg)
	if err != nil {
		return err
	}
	a.Parallel = c.Int("parallel")

	ctx, cancel := signalContext()
	defer cancel()
	started := time.Now()
	results, err := a.Run(ctx)
	if err != nil {
		return err
	}
	if err := report.Write(c.App.Writer, cfg.Output.Format, results, cfg.Output.Color); err != nil {
		return err
	}

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		for _, r := range results {
			if changed, err := store.OutcomesChanged(ctx, r); err != nil {
				return err
			} else if changed {
				log.Warnf("%s: outcome set differs from the previous run", r.Scenario)
			}
			if _, err := store.Record(ctx, r, started); err != nil {
				return err
			}
		}
	}

	for _, r := range results {
		if !r.Passed {
			return fmt.Errorf("scenario %s failed", r.Scenario)
		}
	}
	return nil
}

func replay(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: replay scenario token")
	}
	s, err := scenario.Lookup(c.Args().Get(0))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	b := &explorer.Builder{MaxPreemptions: cfg.Explorer.MaxPreemptions}
	rep, err := b.Replay(ctx, c.Args().Get(1), s.Body)
	if errors.Is(err, explorer.ErrNondeterministic) {
		return err
	}
	var f *explorer.Failure
	if errors.As(err, &f) {
		log.Infof("Replayed failing execution of %s: %v", s.Name, f.Err)
		trace.PrintTrace(f.Trace)
		return nil
	}
	if err != nil {
		return err
	}
	log.Infof("Replayed %s without failure, outcome %v", s.Name, rep.OutcomeKeys())
	return nil
}

func stress(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	histogram, err := native.Stress(ctx, cfg.Stress.Iterations, cfg.Stress.Workers)
	for y, n := range histogram {
		log.Infof("  y=%d: %d", y, n)
	}
	return err
}

func listHistory(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("no history database configured")
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	runs, err := store.Recent(context.Background(), c.Args().First(), c.Int("limit"))
	if err != nil {
		return err
	}
	for _, run := range runs {
		status := "PASS"
		if !run.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(c.App.Writer, "%s %-16s %s %6d executions %v\n", run.StartedAt.Format(time.RFC3339), run.Scenario, status, run.Iterations, run.Outcomes)
	}
	return nil
}
