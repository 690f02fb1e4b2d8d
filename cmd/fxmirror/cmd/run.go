package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/fxmirror/broker"
	"github.com/rustyeddy/fxmirror/engine"
	"github.com/rustyeddy/fxmirror/journal"
	"github.com/rustyeddy/fxmirror/notify"
	"github.com/rustyeddy/fxmirror/server"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision cycle",
	Long: `Run the mirror-hedging decision cycle on a fixed interval.

Each cycle reads the manager's net exposure, consolidates it into USD pairs,
sizes the mirror target and trades the delta. Orders are only sent with
--execute; without it the cycle runs against live data and journals what it
would have done.

Examples:
  fxmirror run -c fxmirror.yaml --once
  fxmirror run -c fxmirror.yaml --execute --interval 2m --export`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runHeadless bool
	runOnce     bool
	runExecute  bool
	runExport   bool
	runInterval time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "do not start the status server even if enabled in config")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single cycle and exit")
	runCmd.Flags().BoolVar(&runExecute, "execute", false, "send orders to the terminal (otherwise dry run)")
	runCmd.Flags().BoolVar(&runExport, "export", false, "write timestamped USD and pair position tables after each cycle")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "pause between cycles (overrides runtime.cycle_seconds)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	term, err := buildTerminal(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	if !runExecute {
		term = broker.DryRun{Terminal: term}
		log.Warn("dry run: orders will be journalled as rejected, pass --execute to trade")
	}

	sink, csvj, err := buildSink(cfg)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Error("close journal", zap.Error(err))
		}
	}()
	if runExport && csvj == nil {
		if csvj, err = journal.NewCSV(cfg.Journal.Dir); err != nil {
			return fmt.Errorf("export dir: %w", err)
		}
	}

	eng := engine.New(cfg.Engine(), buildFeed(cfg), term, sink, log.Named("engine"))
	if n := cfg.Notify; n.TelegramToken != "" && n.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(n.TelegramToken, n.TelegramChatID, log.Named("telegram"))
		if err != nil {
			log.Warn("telegram alerts disabled", zap.Error(err))
		} else {
			eng.SetAlerter(tg)
		}
	}

	interval := cfg.Runtime.Interval()
	if runInterval > 0 {
		interval = runInterval
	}

	state := &server.State{}
	loop := &cycleLoop{cycler: eng, state: state, export: runExport, csv: csvj, log: log}

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	if cfg.Server.Enabled && !runHeadless {
		srv := server.New(cfg.Server.Addr, state, eng, log.Named("server"))
		g.Go(func() error { return srv.Start(loopCtx) })
	}
	g.Go(func() error {
		defer cancel()
		return loop.run(loopCtx, interval, runOnce)
	})

	log.Info("fxmirror started",
		zap.String("terminal", cfg.Runtime.Terminal),
		zap.String("feed", cfg.Runtime.Feed),
		zap.Bool("execute", runExecute),
		zap.Duration("interval", interval),
	)
	return g.Wait()
}

// cycleLoop drives the engine on a ticker and publishes each outcome.
type cycleLoop struct {
	cycler server.Cycler
	state  *server.State
	export bool
	csv    *journal.CSVJournal
	log    *zap.Logger
}

// run cycles until ctx is done. With once it returns after the first cycle,
// carrying that cycle's error.
func (l *cycleLoop) run(ctx context.Context, interval time.Duration, once bool) error {
	if once {
		return l.once(ctx)
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		_ = l.once(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// once runs one cycle. Cancellation of ctx is not passed on: a started cycle
// always finishes, so a split order never loses its second leg.
func (l *cycleLoop) once(ctx context.Context) error {
	res, err := l.cycler.Cycle(context.WithoutCancel(ctx))
	if errors.Is(err, engine.ErrCycleInProgress) {
		l.log.Debug("cycle skipped, previous still running")
		return nil
	}
	l.state.Record(res, err, time.Now())
	if err != nil {
		l.log.Error("cycle failed", zap.Error(err))
		return err
	}

	l.log.Info("cycle_done",
		zap.String("cycle_id", res.CycleID),
		zap.Int("trades", res.TradesExecuted),
		zap.Int("symbols", len(res.USDRows)),
		zap.String("status", res.Status),
	)

	if l.export && l.csv != nil {
		usd, pairs := res.Tables()
		for _, t := range []struct {
			prefix string
			header []string
			rows   [][]string
		}{
			{"ccy_usd_positions", engine.USDHeader, usd},
			{"ccy_pair_positions", engine.PairHeader, pairs},
		} {
			path, err := l.csv.Export(t.prefix, t.header, t.rows)
			if err != nil {
				l.log.Error("export failed", zap.String("table", t.prefix), zap.Error(err))
				continue
			}
			l.log.Debug("exported", zap.String("path", path))
		}
	}
	return nil
}
