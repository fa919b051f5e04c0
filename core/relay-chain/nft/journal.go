package nft

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// OperationRecord is one journal line: an attempted ledger operation and
// its outcome.
type OperationRecord struct {
	Operation    string
	Caller       common.Address
	From         common.Address
	To           common.Address
	TokenID      uint64
	Err          error
	SupplyBefore uint64
	SupplyAfter  uint64
}

// TransactionJournal writes one structured entry per attempted operation,
// accepted or rejected.
type TransactionJournal struct {
	logger *zap.Logger
}

func NewTransactionJournal(logger *zap.Logger) *TransactionJournal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionJournal{logger: logger.Named("nft")}
}

// Record writes rec at info level when it succeeded and at warn level when
// the ledger rejected it.
func (j *TransactionJournal) Record(rec OperationRecord) {
	fields := []zap.Field{
		zap.String("operation", rec.Operation),
		zap.String("caller", rec.Caller.Hex()),
		zap.Uint64("token_id", rec.TokenID),
		zap.Uint64("total_supply_before", rec.SupplyBefore),
		zap.Uint64("total_supply_after", rec.SupplyAfter),
	}
	if rec.From != NoIdentity {
		fields = append(fields, zap.String("from", rec.From.Hex()))
	}
	if rec.To != NoIdentity {
		fields = append(fields, zap.String("to", rec.To.Hex()))
	}

	if rec.Err != nil {
		fields = append(fields,
			zap.String("status", "failed"),
			zap.String("error_code", Code(rec.Err)),
			zap.Error(rec.Err))
		j.logger.Warn("operation rejected", fields...)
		return
	}
	j.logger.Info("operation applied", append(fields, zap.String("status", "success"))...)
}

// Sync flushes buffered journal entries.
func (j *TransactionJournal) Sync() error {
	return j.logger.Sync()
}

// NewJournalLogger builds a zap logger that appends JSON lines to a daily
// file nft_transactions_YYYY-MM-DD.jsonl under logDir.
func NewJournalLogger(logDir string, level zapcore.Level) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFileName := fmt.Sprintf("nft_transactions_%s.jsonl", time.Now().Format("2006-01-02"))
	logFilePath := filepath.Join(logDir, logFileName)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{logFilePath},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", logFilePath, err)
	}
	return logger, nil
}
