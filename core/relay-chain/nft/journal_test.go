package nft

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTransactionJournal(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	opts := testOptions()
	opts.Logger = zap.New(core)
	c, err := NewCollection(opts)
	require.NoError(t, err)

	require.NoError(t, c.Mint(admin, addr1, 1))
	require.Error(t, c.Mint(admin, addr2, 1))
	require.NoError(t, c.TransferFrom(addr1, addr1, addr2, 1))
	require.NoError(t, c.Burn(addr2, 1))

	t.Run("One entry per attempt", func(t *testing.T) {
		assert.Equal(t, 4, logs.Len())
		assert.Equal(t, 3, logs.FilterMessage("operation applied").Len())
		assert.Equal(t, 1, logs.FilterMessage("operation rejected").Len())
	})

	t.Run("Accepted mint fields", func(t *testing.T) {
		entry := logs.All()[0]
		assert.Equal(t, "nft", entry.LoggerName)
		fields := entry.ContextMap()
		assert.Equal(t, "mint", fields["operation"])
		assert.Equal(t, "success", fields["status"])
		assert.Equal(t, addr1.Hex(), fields["to"])
		assert.Equal(t, uint64(0), fields["total_supply_before"])
		assert.Equal(t, uint64(1), fields["total_supply_after"])
	})

	t.Run("Rejected mint fields", func(t *testing.T) {
		entry := logs.FilterMessage("operation rejected").All()[0]
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
		fields := entry.ContextMap()
		assert.Equal(t, "failed", fields["status"])
		assert.Equal(t, "already_exists", fields["error_code"])
		assert.Equal(t, uint64(1), fields["total_supply_after"])
	})

	t.Run("Burn records the previous owner", func(t *testing.T) {
		entry := logs.FilterField(zap.String("operation", "burn")).All()[0]
		assert.Equal(t, addr2.Hex(), entry.ContextMap()["from"])
	})
}

func TestJournalLoggerWritesJSONLines(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewJournalLogger(dir, zapcore.InfoLevel)
	require.NoError(t, err)

	opts := testOptions()
	opts.Logger = logger
	c, err := NewCollection(opts)
	require.NoError(t, err)

	require.NoError(t, c.Mint(admin, addr1, 1))
	require.NoError(t, c.Approve(addr1, addr2, 1))
	_ = logger.Sync()

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "nft_transactions_"))

	content, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	for i, op := range []string{"mint", "approve"} {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &entry))
		assert.Equal(t, op, entry["operation"])
		assert.Equal(t, "success", entry["status"])
		assert.NotEmpty(t, entry["timestamp"])
	}
}
