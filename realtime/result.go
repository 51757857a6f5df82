// Package realtime runs the sliding-window decode loop: it pulls
// sample batches from an acquisition source, maintains per-channel
// window buffers, drives filtering, quality gating and the decision
// engine for each window, and emits result records to the configured
// sinks. The loop is single-threaded; every mutable piece (buffers,
// histories, engines) is owned by it.
package realtime

import (
	"time"

	"github.com/c360/neurostream/acquisition"
	"github.com/c360/neurostream/decision"
)

// Result is one attention decision record. The field set and order
// form a compatibility contract with downstream log consumers; new
// fields go at the end.
type Result struct {
	Timestamp         time.Time `json:"timestamp"`
	SampleCount       int64     `json:"sample_count"`
	LeftAlphaPower    float64   `json:"left_alpha_power"`
	RightAlphaPower   float64   `json:"right_alpha_power"`
	LateralizationIdx float64   `json:"lateralization_index"`
	Direction         string    `json:"attention_direction"`
	Confidence        float64   `json:"confidence"`
	SmoothedDirection string    `json:"smoothed_direction"`
	QualityScore      float64   `json:"quality_score"`
	LeftSNRdB         float64   `json:"left_snr_db"`
	RightSNRdB        float64   `json:"right_snr_db"`
	LeftArtifact      bool      `json:"left_artifact"`
	RightArtifact     bool      `json:"right_artifact"`
	ProcessingTimeMs  float64   `json:"processing_time_ms"`
}

// FocusResult is one focus decision record (single-channel mode).
type FocusResult struct {
	Timestamp        time.Time `json:"timestamp"`
	SampleCount      int64     `json:"sample_count"`
	AlphaPower       float64   `json:"alpha_power"`
	BaselineAlpha    float64   `json:"baseline_alpha"`
	SuppressionRatio float64   `json:"suppression_ratio"`
	State            string    `json:"focus_state"`
	Confidence       float64   `json:"confidence"`
	SmoothedState    string    `json:"smoothed_state"`
	Agreement        float64   `json:"agreement"`
	QualityScore     float64   `json:"quality_score"`
	SNRdB            float64   `json:"snr_db"`
	Artifact         bool      `json:"artifact"`
	ProcessingTimeMs float64   `json:"processing_time_ms"`
}

// Status is the periodic aggregate report. Mode-specific sections are
// nil when the other engine is driving.
type Status struct {
	Timestamp        time.Time                   `json:"timestamp"`
	Mode             string                      `json:"mode"`
	SamplesProcessed int64                       `json:"samples_processed"`
	WindowsProcessed int64                       `json:"windows_processed"`
	Acquisition      acquisition.Statistics      `json:"acquisition"`
	Calibration      *decision.CalibrationStatus `json:"calibration,omitempty"`
	Decisions        *decision.Statistics        `json:"decisions,omitempty"`
	Focus            *decision.FocusStatistics   `json:"focus,omitempty"`
	AvgProcessingMs  float64                     `json:"avg_processing_ms"`
	MaxProcessingMs  float64                     `json:"max_processing_ms"`
}

// Sink receives emitted records. Implementations are called from the
// decode loop and must not block for long; a failed write is counted
// and logged but never stops the loop.
type Sink interface {
	Name() string
	WriteResult(r Result) error
	WriteFocus(r FocusResult) error
	WriteStatus(s Status) error
	Close() error
}
