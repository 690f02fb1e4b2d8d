package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxmirror/broker"
	"github.com/rustyeddy/fxmirror/config"
	"github.com/rustyeddy/fxmirror/journal"
	"github.com/rustyeddy/fxmirror/manager"
	"github.com/rustyeddy/fxmirror/oanda"
	"github.com/rustyeddy/fxmirror/sim"
)

func buildTerminal(ctx context.Context, cfg *config.Config, log *zap.Logger) (broker.Terminal, error) {
	switch cfg.Runtime.Terminal {
	case "oanda":
		conn := cfg.Connection
		if conn.OandaToken == "" || conn.OandaAccountID == "" {
			return nil, fmt.Errorf("oanda terminal needs %s and %s", config.EnvOandaToken, config.EnvOandaAccount)
		}
		c := oanda.NewClient(conn.OandaToken, conn.OandaAccountID, conn.OandaPractice, log.Named("oanda"))
		c.ContractSize = make(map[string]float64, len(cfg.Symbols.Metadata))
		for sym, m := range cfg.Symbols.Metadata {
			c.ContractSize[sym] = m.ContractSize
		}
		return c, nil

	default:
		seed, err := sim.LoadSeed(cfg.Runtime.PaperFile)
		if err != nil {
			return nil, err
		}
		paper, err := seed.Build(ctx)
		if err != nil {
			return nil, err
		}
		log.Info("paper terminal ready", zap.Stringer("account", paper))
		return paper, nil
	}
}

func buildFeed(cfg *config.Config) manager.Feed {
	if cfg.Runtime.Feed == "http" {
		return manager.NewHTTPFeed(cfg.Connection.ManagerURL, cfg.Connection.ManagerToken, cfg.Symbols.Universe)
	}
	return &manager.FileFeed{Path: cfg.Runtime.FeedFile, Universe: cfg.Symbols.Universe}
}

// buildSink opens the configured journals. The CSV journal is returned too
// so timestamped exports land next to the dated logs.
func buildSink(cfg *config.Config) (journal.Sink, *journal.CSVJournal, error) {
	switch cfg.Journal.Type {
	case "sqlite":
		s, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil

	case "both":
		c, err := journal.NewCSV(cfg.Journal.Dir)
		if err != nil {
			return nil, nil, err
		}
		s, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return journal.Tee{c, s}, c, nil

	default:
		c, err := journal.NewCSV(cfg.Journal.Dir)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}
}
