package csvlog

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/c360/neurostream/config"
	"github.com/c360/neurostream/errors"
	"github.com/c360/neurostream/realtime"
)

// flushEvery bounds how many records sit in the csv writer's buffer
// before a forced flush to disk.
const flushEvery = 10

// attentionColumns is the fixed column contract for attention-mode
// records. Analysis scripts key on these names.
var attentionColumns = []string{
	"timestamp",
	"sample_count",
	"left_alpha_power",
	"right_alpha_power",
	"lateralization_index",
	"attention_direction",
	"confidence",
	"smoothed_direction",
	"quality_score",
	"left_snr_db",
	"right_snr_db",
	"left_artifact",
	"right_artifact",
}

// focusColumns is the column set for focus-mode records.
var focusColumns = []string{
	"timestamp",
	"sample_count",
	"alpha_power",
	"baseline_alpha",
	"suppression_ratio",
	"focus_state",
	"confidence",
	"smoothed_state",
	"agreement",
	"quality_score",
	"snr_db",
	"artifact",
}

// Writer logs decision records to a CSV file. The column set is fixed
// at construction by the pipeline mode; records from the other mode
// are rejected so a single file never mixes schemas.
type Writer struct {
	path   string
	mode   string
	logger *slog.Logger

	mu      sync.Mutex
	file    *os.File
	writer  *csv.Writer
	written int64
	closed  bool
}

var _ realtime.Sink = (*Writer)(nil)

// New opens (truncating) the CSV file at path and writes the header
// row for the given mode. An empty path derives a timestamped name in
// the current directory.
func New(path, mode string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if mode != config.ModeAttention && mode != config.ModeFocus {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "csvlog", "New",
			fmt.Sprintf("unknown mode %q", mode))
	}
	if path == "" {
		path = fmt.Sprintf("%s_log_%s.csv", mode, time.Now().Format("20060102_150405"))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WrapFatal(err, "csvlog", "New", "create log directory")
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.WrapFatal(err, "csvlog", "New", "open log file")
	}

	w := &Writer{
		path:   path,
		mode:   mode,
		logger: logger,
		file:   file,
		writer: csv.NewWriter(file),
	}

	header := attentionColumns
	if mode == config.ModeFocus {
		header = focusColumns
	}
	if err := w.writer.Write(header); err != nil {
		_ = file.Close()
		return nil, errors.WrapFatal(err, "csvlog", "New", "write header")
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		_ = file.Close()
		return nil, errors.WrapFatal(err, "csvlog", "New", "flush header")
	}

	logger.Info("csv logging started", "path", path, "mode", mode)
	return w, nil
}

// Name identifies the sink in logs and metrics labels.
func (w *Writer) Name() string { return "csv" }

// Path returns the resolved log file path.
func (w *Writer) Path() string { return w.path }

// WriteResult appends one attention record.
func (w *Writer) WriteResult(r realtime.Result) error {
	if w.mode != config.ModeAttention {
		return errors.WrapInvalid(errors.ErrInvalidData, "csvlog", "WriteResult",
			"attention record on focus-mode log")
	}
	return w.writeRow([]string{
		r.Timestamp.Format(time.RFC3339Nano),
		strconv.FormatInt(r.SampleCount, 10),
		fmtFloat(r.LeftAlphaPower),
		fmtFloat(r.RightAlphaPower),
		fmtFloat(r.LateralizationIdx),
		r.Direction,
		fmtFloat(r.Confidence),
		r.SmoothedDirection,
		fmtFloat(r.QualityScore),
		fmtFloat(r.LeftSNRdB),
		fmtFloat(r.RightSNRdB),
		strconv.FormatBool(r.LeftArtifact),
		strconv.FormatBool(r.RightArtifact),
	})
}

// WriteFocus appends one focus record.
func (w *Writer) WriteFocus(r realtime.FocusResult) error {
	if w.mode != config.ModeFocus {
		return errors.WrapInvalid(errors.ErrInvalidData, "csvlog", "WriteFocus",
			"focus record on attention-mode log")
	}
	return w.writeRow([]string{
		r.Timestamp.Format(time.RFC3339Nano),
		strconv.FormatInt(r.SampleCount, 10),
		fmtFloat(r.AlphaPower),
		fmtFloat(r.BaselineAlpha),
		fmtFloat(r.SuppressionRatio),
		r.State,
		fmtFloat(r.Confidence),
		r.SmoothedState,
		fmtFloat(r.Agreement),
		fmtFloat(r.QualityScore),
		fmtFloat(r.SNRdB),
		strconv.FormatBool(r.Artifact),
	})
}

// WriteStatus is a no-op; status reports go to the log and to the
// streaming sinks, not the record file.
func (w *Writer) WriteStatus(realtime.Status) error { return nil }

func (w *Writer) writeRow(row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "csvlog", "writeRow", "write after close")
	}

	if err := w.writer.Write(row); err != nil {
		return errors.WrapTransient(err, "csvlog", "writeRow", "append record")
	}
	w.written++
	if w.written%flushEvery == 0 {
		w.writer.Flush()
		if err := w.writer.Error(); err != nil {
			return errors.WrapTransient(err, "csvlog", "writeRow", "flush records")
		}
	}
	return nil
}

// Written reports how many records have been appended.
func (w *Writer) Written() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Close flushes buffered rows and closes the file. Safe to call more
// than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.writer.Flush()
	flushErr := w.writer.Error()
	closeErr := w.file.Close()

	w.logger.Info("csv logging stopped", "path", w.path, "records", w.written)

	if flushErr != nil {
		return errors.WrapTransient(flushErr, "csvlog", "Close", "final flush")
	}
	if closeErr != nil {
		return errors.WrapTransient(closeErr, "csvlog", "Close", "close file")
	}
	return nil
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
