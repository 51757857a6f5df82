package csvlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/neurostream/config"
	nserrors "github.com/c360/neurostream/errors"
	"github.com/c360/neurostream/realtime"
)

func sampleResult() realtime.Result {
	return realtime.Result{
		Timestamp:         time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		SampleCount:       1250,
		LeftAlphaPower:    12.5,
		RightAlphaPower:   37.5,
		LateralizationIdx: 0.5,
		Direction:         "RIGHT",
		Confidence:        0.75,
		SmoothedDirection: "RIGHT",
		QualityScore:      92.3,
		LeftSNRdB:         8.1,
		RightSNRdB:        9.4,
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriter_AttentionHeaderAndRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attention.csv")
	w, err := New(path, config.ModeAttention, nil)
	require.NoError(t, err)

	require.NoError(t, w.WriteResult(sampleResult()))
	require.NoError(t, w.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, attentionColumns, rows[0])

	record := rows[1]
	assert.Equal(t, "1250", record[1])
	assert.Equal(t, "0.5", record[4])
	assert.Equal(t, "RIGHT", record[5])
	assert.Equal(t, "false", record[11])
	assert.Equal(t, "false", record[12])
}

func TestWriter_FocusHeaderAndRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.csv")
	w, err := New(path, config.ModeFocus, nil)
	require.NoError(t, err)

	require.NoError(t, w.WriteFocus(realtime.FocusResult{
		Timestamp:        time.Now(),
		SampleCount:      500,
		AlphaPower:       6,
		BaselineAlpha:    12,
		SuppressionRatio: 0.5,
		State:            "FOCUSED",
		Confidence:       1,
		SmoothedState:    "FOCUSED",
		Agreement:        0.8,
		QualityScore:     88,
		SNRdB:            7.2,
	}))
	require.NoError(t, w.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, focusColumns, rows[0])
	assert.Equal(t, "FOCUSED", rows[1][5])
	assert.Equal(t, "0.5", rows[1][4])
}

func TestWriter_RejectsCrossModeRecords(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "a.csv"), config.ModeAttention, nil)
	require.NoError(t, err)
	defer w.Close()

	err = w.WriteFocus(realtime.FocusResult{})
	assert.True(t, nserrors.IsInvalid(err))

	f, err := New(filepath.Join(t.TempDir(), "f.csv"), config.ModeFocus, nil)
	require.NoError(t, err)
	defer f.Close()

	err = f.WriteResult(realtime.Result{})
	assert.True(t, nserrors.IsInvalid(err))
}

func TestWriter_FlushesEveryTenRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flush.csv")
	w, err := New(path, config.ModeAttention, nil)
	require.NoError(t, err)
	defer w.Close()

	r := sampleResult()
	for i := 0; i < flushEvery; i++ {
		require.NoError(t, w.WriteResult(r))
	}

	// Header plus ten records should be on disk without Close.
	rows := readRows(t, path)
	assert.Len(t, rows, 1+flushEvery)
	assert.Equal(t, int64(flushEvery), w.Written())
}

func TestWriter_CloseFlushesPartialBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.csv")
	w, err := New(path, config.ModeAttention, nil)
	require.NoError(t, err)

	require.NoError(t, w.WriteResult(sampleResult()))
	require.NoError(t, w.WriteResult(sampleResult()))
	require.NoError(t, w.Close())

	rows := readRows(t, path)
	assert.Len(t, rows, 3)
}

func TestWriter_CloseIdempotentAndRejectsWrites(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "c.csv"), config.ModeAttention, nil)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err = w.WriteResult(sampleResult())
	assert.True(t, nserrors.IsInvalid(err))
}

func TestWriter_DefaultPathAndUnknownMode(t *testing.T) {
	_, err := New("", "telepathy", nil)
	assert.True(t, nserrors.IsInvalid(err))

	dir := t.TempDir()
	w, err := New(filepath.Join(dir, "nested", "log.csv"), config.ModeAttention, nil)
	require.NoError(t, err)
	assert.Equal(t, "csv", w.Name())
	require.NoError(t, w.Close())

	_, statErr := os.Stat(filepath.Join(dir, "nested", "log.csv"))
	assert.NoError(t, statErr)
}

func TestWriter_StatusIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.csv")
	w, err := New(path, config.ModeAttention, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteStatus(realtime.Status{Mode: config.ModeAttention}))
	rows := readRows(t, path)
	assert.Len(t, rows, 1)
}
