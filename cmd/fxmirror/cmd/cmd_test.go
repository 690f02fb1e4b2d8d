package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxmirror/config"
	"github.com/rustyeddy/fxmirror/engine"
	"github.com/rustyeddy/fxmirror/journal"
	"github.com/rustyeddy/fxmirror/server"
)

const paperSeed = `
account:
  id: paper-cli
  balance: 100000
  leverage: 100
symbols:
  - symbol: EURUSD
    bid: 1.1000
    ask: 1.1002
    volume_min: 0.01
    volume_step: 0.01
    point: 0.00001
    digits: 5
  - symbol: USDJPY
    bid: 150.00
    ask: 150.02
    volume_min: 0.01
    volume_step: 0.01
    point: 0.001
    digits: 3
`

const feedSnapshot = `
summaries:
  - symbol: EURUSD
    volume_net: -1.5
    volume_buy_clients: 10000
    volume_sell_clients: 25000
    position_clients: 4
  - symbol: USDJPY
    volume_net: 0.8
    volume_buy_clients: 8000
    position_clients: 2
`

// execute runs the root command with args and returns its output. Flag
// variables are package state, so they are reset first.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath, logLevel, envFile = "", "error", ""
	runHeadless, runOnce, runExecute, runExport, runInterval = false, false, false, false, 0
	journalDBPath, journalSince = "", 24*time.Hour
	configInitOutput, configInitForce, configValidatePath = "fxmirror.yaml", false, ""
	historyBars, historyCSV = 0, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// paperConfig writes a paper/file config into a temp dir and returns its path.
func paperConfig(t *testing.T, journalType string) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "paper.yaml")
	feed := filepath.Join(dir, "feed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(paperSeed), 0o644))
	require.NoError(t, os.WriteFile(feed, []byte(feedSnapshot), 0o644))

	cfg := config.Default()
	cfg.Runtime.PaperFile = seed
	cfg.Runtime.FeedFile = feed
	cfg.Symbols.Universe = []string{"EURUSD", "USDJPY"}
	cfg.Symbols.Mapping = nil
	cfg.Journal.Type = journalType
	cfg.Journal.Dir = filepath.Join(dir, "journal")
	cfg.Journal.DBPath = filepath.Join(dir, "fxmirror.db")
	cfg.Server.Enabled = false
	cfg.Log.Level = "error"

	path := filepath.Join(dir, "fxmirror.yaml")
	require.NoError(t, cfg.SaveToFile(path))
	return path, cfg
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fxmirror dev\n", out)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fx.yaml")

	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")

	_, err = execute(t, "config", "init", "-o", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use --force")

	_, err = execute(t, "config", "init", "-o", path, "--force")
	require.NoError(t, err)

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Universe: 47 symbols")
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runtime:\n  cycle_seconds: 0\n"), 0o644))

	_, err := execute(t, "config", "validate", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestRunOnceJournalsToSQLite(t *testing.T) {
	path, cfg := paperConfig(t, "sqlite")

	_, err := execute(t, "run", "-c", path, "--once")
	require.NoError(t, err)

	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	require.NoError(t, err)
	defer j.Close()

	rows, err := j.ExposureTable(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, rows)

	// dry run sends nothing
	trades, err := j.ListTrades(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, trades)

	out, err := execute(t, "journal", "summary", "--db", cfg.Journal.DBPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Daily summary "+time.Now().Format("2006-01-02"))
	assert.Contains(t, out, "trades:     0")
}

func TestRunOnceExport(t *testing.T) {
	path, cfg := paperConfig(t, "both")

	_, err := execute(t, "run", "-c", path, "--once", "--export")
	require.NoError(t, err)

	day := filepath.Join(cfg.Journal.Dir, time.Now().Format("2006-01-02"))
	usd, err := filepath.Glob(filepath.Join(day, "ccy_usd_positions_*.csv"))
	require.NoError(t, err)
	assert.Len(t, usd, 1)
	pairs, err := filepath.Glob(filepath.Join(day, "ccy_pair_positions_*.csv"))
	require.NoError(t, err)
	assert.Len(t, pairs, 1)

	_, err = os.Stat(cfg.Journal.DBPath)
	assert.NoError(t, err)
}

func TestRunOnceFeedError(t *testing.T) {
	path, cfg := paperConfig(t, "csv")
	require.NoError(t, os.Remove(cfg.Runtime.FeedFile))

	_, err := execute(t, "run", "-c", path, "--once")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch net positions")
}

func TestRunOandaNeedsCredentials(t *testing.T) {
	path, cfg := paperConfig(t, "csv")
	cfg.Runtime.Terminal = "oanda"
	require.NoError(t, cfg.SaveToFile(path))
	t.Setenv(config.EnvOandaToken, "")
	t.Setenv(config.EnvOandaAccount, "")

	_, err := execute(t, "run", "-c", path, "--once")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oanda terminal needs")
}

func TestJournalDayAndRejected(t *testing.T) {
	path, cfg := paperConfig(t, "sqlite")
	_, err := execute(t, "run", "-c", path, "--once")
	require.NoError(t, err)

	out, err := execute(t, "journal", "day", time.Now().Format("2006-01-02"), "--db", cfg.Journal.DBPath)
	require.NoError(t, err)
	assert.NotContains(t, out, "error")

	_, err = execute(t, "journal", "day", "15/01/2024", "--db", cfg.Journal.DBPath)
	require.Error(t, err)

	_, err = execute(t, "journal", "rejected", "--since", "1h", "--db", cfg.Journal.DBPath)
	require.NoError(t, err)
}

func TestDayBounds(t *testing.T) {
	start, end, err := dayBounds(time.UTC, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestHistory(t *testing.T) {
	path, cfg := paperConfig(t, "csv")

	out, err := execute(t, "history", "-c", path, "--csv", "eurusd", "GBPUSD")
	require.NoError(t, err)
	assert.Contains(t, out, "| EURUSD   |     1 | neutral")
	// GBPUSD is not quoted by the paper seed
	assert.Contains(t, out, "| GBPUSD   |     0 |")

	day := filepath.Join(cfg.Journal.Dir, time.Now().Format("2006-01-02"))
	files, err := filepath.Glob(filepath.Join(day, "history_EURUSD_*.csv"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

type ctxCycler struct {
	calls  int
	sawErr error
}

func (c *ctxCycler) Cycle(ctx context.Context) (engine.Result, error) {
	c.calls++
	c.sawErr = ctx.Err()
	if c.sawErr != nil {
		return engine.Result{}, c.sawErr
	}
	return engine.Result{CycleID: "01J0000000000000000000000"}, nil
}

func TestCycleLoopIgnoresShutdownMidCycle(t *testing.T) {
	cy := &ctxCycler{}
	state := &server.State{}
	loop := &cycleLoop{cycler: cy, state: state, log: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, loop.run(ctx, time.Hour, true))
	assert.NoError(t, cy.sawErr)
	_, ok := state.Last()
	assert.True(t, ok)

	// the interval loop stops after the in-flight cycle
	require.NoError(t, loop.run(ctx, time.Hour, false))
	assert.Equal(t, 2, cy.calls)
	assert.NoError(t, cy.sawErr)
}
