package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxmirror/indicators"
	"github.com/rustyeddy/fxmirror/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history [SYMBOL...]",
	Short: "Fetch close history and show the trend gate inputs",
	Long: `Fetch the close history the cycle uses for its trend gate from the
configured terminal and print SMA trend, RSI and MACD per symbol. With no
symbols the whole universe is listed.

With --csv the closes are also written to the journal folder, one
history_<SYMBOL> table per symbol.

Examples:
  fxmirror history -c fxmirror.yaml EURUSD USDJPY
  fxmirror history -c fxmirror.yaml --bars 500 --csv`,
	RunE: runHistory,
}

var (
	historyBars int
	historyCSV  bool
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyBars, "bars", 0, "number of closes to fetch (default runtime.history_bars)")
	historyCmd.Flags().BoolVar(&historyCSV, "csv", false, "write the closes to the journal folder")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	ctx := cmd.Context()
	term, err := buildTerminal(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}

	var csvj *journal.CSVJournal
	if historyCSV {
		if csvj, err = journal.NewCSV(cfg.Journal.Dir); err != nil {
			return fmt.Errorf("journal dir: %w", err)
		}
	}

	symbols := cfg.Symbols.Universe
	if len(args) > 0 {
		symbols = args
	}
	bars := cfg.Runtime.HistoryBars
	if historyBars > 0 {
		bars = historyBars
	}
	exec := cfg.Engine().Exec
	params := cfg.TrendParams()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "| %-8s | %5s | %-8s | %10s | %8s | %10s |\n", "Symbol", "Bars", "Trend", "Strength", "RSI", "MACD")
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		tsym := exec.TerminalSymbol(sym)

		closes, err := term.Closes(ctx, tsym, bars)
		if err != nil {
			log.Warn("close history unavailable", zap.String("symbol", tsym), zap.Error(err))
			fmt.Fprintf(out, "| %-8s | %5d | %-8s | %10s | %8s | %10s |\n", sym, 0, "-", "-", "-", "-")
			continue
		}

		tm := indicators.ComputeTrend(closes, params)
		fmt.Fprintf(out, "| %-8s | %5d | %-8s | %10.5f | %8s | %10s |\n",
			sym, len(closes), tm.Trend, tm.Strength, optional(tm.RSI, 2), optional(tm.MACD, 6))

		if csvj != nil {
			rows := make([][]string, 0, len(closes))
			for i, c := range closes {
				rows = append(rows, []string{strconv.Itoa(i), strconv.FormatFloat(c, 'f', -1, 64)})
			}
			path, err := csvj.Export("history_"+sym, []string{"Bar", "Close"}, rows)
			if err != nil {
				return fmt.Errorf("export %s: %w", sym, err)
			}
			log.Debug("history written", zap.String("path", path))
		}
	}
	return nil
}

func optional(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
