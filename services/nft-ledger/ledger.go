package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/config"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/monitoring"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/sequencer"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/storage"
)

// ledgerNode bundles one collection with its store, journal and writer.
type ledgerNode struct {
	logger     *logrus.Logger
	journal    *zap.Logger
	store      storage.Store
	collection *nft.Collection
	sequencer  *sequencer.Sequencer
	monitor    *monitoring.LedgerMonitor
}

func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	if cfg.Colored {
		logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   true,
			FullTimestamp: true,
		})
	}
	return logger, nil
}

func newJournal(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.JournalDir == "" {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	return nft.NewJournalLogger(cfg.JournalDir, level)
}

// openLedger opens the configured store and recovers the collection from
// its last snapshot, or creates a fresh one when the store is empty.
func openLedger(cfg *config.Config, logger *logrus.Logger) (*ledgerNode, error) {
	journal, err := newJournal(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	collection, err := loadCollection(store, cfg, journal, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	seq := sequencer.New(collection, store, sequencer.Options{
		ReplayProtection: cfg.Server.ReplayProtection,
		QueueSize:        cfg.Server.QueueSize,
		Logger:           logger,
	})

	return &ledgerNode{
		logger:     logger,
		journal:    journal,
		store:      store,
		collection: collection,
		sequencer:  seq,
		monitor:    monitoring.NewLedgerMonitor(collection, seq, cfg.Server.MonitorInterval, logger),
	}, nil
}

func loadCollection(store storage.Store, cfg *config.Config, journal *zap.Logger, logger *logrus.Logger) (*nft.Collection, error) {
	snap, err := store.LoadSnapshot()
	if errors.Is(err, storage.ErrNoSnapshot) {
		collection, err := nft.NewCollection(cfg.CollectionOptions(journal))
		if err != nil {
			return nil, err
		}
		if err := store.SaveSnapshot(collection.Snapshot()); err != nil {
			return nil, fmt.Errorf("save initial snapshot: %w", err)
		}
		logger.WithFields(logrus.Fields{
			"name":       cfg.Collection.Name,
			"symbol":     cfg.Collection.Symbol,
			"max_supply": cfg.Collection.MaxSupply,
			"admin":      cfg.AdminAddress().Hex(),
		}).Info("✅ Created new collection")
		return collection, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	collection, err := nft.Restore(snap, journal)
	if err != nil {
		return nil, err
	}
	if snap.Admin != cfg.AdminAddress() || snap.Symbol != cfg.Collection.Symbol || snap.MaxSupply != cfg.Collection.MaxSupply {
		logger.WithFields(logrus.Fields{
			"stored_admin":      snap.Admin.Hex(),
			"stored_symbol":     snap.Symbol,
			"stored_max_supply": snap.MaxSupply,
		}).Warn("⚠️ Stored collection differs from config; stored values are kept")
	}
	logger.WithFields(logrus.Fields{
		"total_supply":  collection.TotalSupply(),
		"last_sequence": collection.LastSequence(),
		"paused":        collection.IsPaused(),
	}).Info("✅ Recovered collection from snapshot")
	return collection, nil
}

func (n *ledgerNode) Close() error {
	n.sequencer.Stop()
	n.journal.Sync()
	return n.store.Close()
}
