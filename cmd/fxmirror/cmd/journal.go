package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxmirror/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite trade journal",
	Long: `Query hedge trades, rejections and daily summaries recorded by the SQLite
journal (journal.type sqlite or both).

Subcommands:
  trades   - List trades since a duration ago
  day      - List trades on a specific day
  rejected - List rejected decisions since a duration ago
  summary  - Show the daily summary for a day

Examples:
  fxmirror journal trades --since 6h
  fxmirror journal day 2024-01-15
  fxmirror journal summary`,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List trades since a duration ago",
	Args:  cobra.NoArgs,
	RunE:  runJournalTrades,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalRejectedCmd = &cobra.Command{
	Use:   "rejected",
	Short: "List rejected decisions since a duration ago",
	Args:  cobra.NoArgs,
	RunE:  runJournalRejected,
}

var journalSummaryCmd = &cobra.Command{
	Use:   "summary [YYYY-MM-DD]",
	Short: "Show the daily summary (today by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalSummary,
}

var (
	journalDBPath string
	journalSince  time.Duration
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalRejectedCmd)
	journalCmd.AddCommand(journalSummaryCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default journal.db_path)")
	journalTradesCmd.Flags().DurationVar(&journalSince, "since", 24*time.Hour, "look-back window")
	journalRejectedCmd.Flags().DurationVar(&journalSince, "since", 24*time.Hour, "look-back window")
}

func openJournal() (*journal.SQLiteJournal, error) {
	path := journalDBPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.DBPath
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListTrades(cmd.Context(), time.Now().Add(-journalSince))
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	recs, err := j.ListTrades(cmd.Context(), start)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	var day []journal.TradeRecord
	for _, r := range recs {
		if r.Timestamp.Before(end) {
			day = append(day, r)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(day))
	return nil
}

func runJournalRejected(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListRejected(cmd.Context(), time.Now().Add(-journalSince))
	if err != nil {
		return fmt.Errorf("query rejected: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatRejectedListOrg(recs))
	return nil
}

func runJournalSummary(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	date := time.Now().Format("2006-01-02")
	if len(args) == 1 {
		date = args[0]
	}
	s, err := j.DailySummary(cmd.Context(), date)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "* Daily summary %s\n", s.Date)
	fmt.Fprintf(out, "  trades:     %d (buy %d, sell %d)\n", s.TotalTrades, s.BuyTrades, s.SellTrades)
	fmt.Fprintf(out, "  wins:       %d (avg %.2f)\n", s.WinTrades, s.AvgProfit)
	fmt.Fprintf(out, "  losses:     %d (avg %.2f)\n", s.LossTrades, s.AvgLoss)
	fmt.Fprintf(out, "  slippage:   %.2f points\n", s.AvgSlippagePoints)
	fmt.Fprintf(out, "  realized:   %.2f\n", s.RealizedPnL)
	fmt.Fprintf(out, "  unrealized: %.2f\n", s.UnrealizedPnL)
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
