package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/neurostream/acquisition"
	"github.com/c360/neurostream/component"
	"github.com/c360/neurostream/config"
	"github.com/c360/neurostream/decision"
	"github.com/c360/neurostream/dsp"
	nserrors "github.com/c360/neurostream/errors"
	"github.com/c360/neurostream/feature"
	"github.com/c360/neurostream/metric"
	"github.com/c360/neurostream/pkg/buffer"
	"github.com/c360/neurostream/quality"
)

// procTimesWindow bounds the processing-time history used in status
// reports.
const procTimesWindow = 100

// idleSleep is the pause when the source has no pending data.
const idleSleep = time.Millisecond

// reconnectSleep is the pause when a reconnect attempt was gated or
// failed.
const reconnectSleep = 100 * time.Millisecond

// Decoder is the sliding-window orchestrator. It owns the channel
// buffers and both decision engines and implements the component
// lifecycle; Run is the blocking core, Start/Stop wrap it for managed
// use.
type Decoder struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metric.Metrics
	source  acquisition.Source
	sinks   []Sink

	chain     *dsp.Chain
	extractor *feature.Extractor
	assessor  *quality.Assessor
	lateral   *decision.Lateralization
	focus     *decision.Focus

	left  *buffer.Window
	right *buffer.Window

	state   component.State
	started time.Time
	lastErr string
	errors  int

	cancel context.CancelFunc
	done   chan struct{}
	runErr error
	mu     sync.Mutex

	samplesProcessed int64
	windowsProcessed int64
	procTimes        []float64
	lastStatus       time.Time
	prevCorrupted    uint64
	prevReconnects   int
}

// NewDecoder wires the processing chain around the given source and
// sinks. metrics may be nil.
func NewDecoder(cfg *config.Config, source acquisition.Source, sinks []Sink, metrics *metric.Metrics, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}

	chain := dsp.NewChain(cfg.Signal, logger)
	bufCap := cfg.WindowSamples() * cfg.Acquisition.BufferWindows

	return &Decoder{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		source:  source,
		sinks:   sinks,

		chain:     chain,
		extractor: feature.NewExtractor(cfg.Signal, chain),
		assessor: quality.NewAssessor(quality.AssessorConfig{
			Artifact: cfg.Artifact,
			Signal:   cfg.Signal,
			ADCMin:   cfg.Acquisition.ADCMin,
			ADCMax:   cfg.Acquisition.ADCMax,
		}, chain, logger),
		lateral: decision.NewLateralization(cfg.Decision, logger),
		focus:   decision.NewFocus(cfg.Focus, logger),

		left:  buffer.NewWindow(bufCap),
		right: buffer.NewWindow(bufCap),

		state: component.StateCreated,
	}
}

// Meta implements component.Component.
func (d *Decoder) Meta() component.Metadata {
	return component.Metadata{
		Name:        "decoder",
		Type:        "decoder",
		Description: "sliding-window EEG decode loop",
		Version:     "1.0.0",
	}
}

// Health implements component.Component.
func (d *Decoder) Health() component.HealthStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := component.HealthStatus{
		Healthy:    d.state == component.StateStarted && d.source.IsConnected(),
		LastCheck:  time.Now(),
		ErrorCount: d.errors,
		LastError:  d.lastErr,
	}
	if !d.started.IsZero() {
		h.Uptime = time.Since(d.started)
	}
	return h
}

// Initialize validates the configuration.
func (d *Decoder) Initialize() error {
	if err := d.cfg.Validate(); err != nil {
		return nserrors.Wrap(err, "Decoder", "Initialize", "validating config")
	}
	d.state = component.StateInitialized
	return nil
}

// Start launches Run on its own goroutine. Stop or context
// cancellation ends it.
func (d *Decoder) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == component.StateStarted {
		return nserrors.WrapInvalid(nserrors.ErrAlreadyStarted, "Decoder", "Start", "starting decode loop")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.state = component.StateStarted
	d.started = time.Now()

	go func() {
		defer close(d.done)
		err := d.Run(runCtx)

		d.mu.Lock()
		d.runErr = err
		if err != nil {
			d.state = component.StateFailed
			d.errors++
			d.lastErr = err.Error()
		} else {
			d.state = component.StateStopped
		}
		d.mu.Unlock()
	}()
	return nil
}

// Stop cancels the loop and waits for it to drain.
func (d *Decoder) Stop(timeout time.Duration) error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-time.After(timeout):
		return nserrors.WrapTransient(
			fmt.Errorf("decode loop still running after %s", timeout),
			"Decoder", "Stop", "waiting for shutdown")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runErr
}

// Run executes the decode loop until ctx is cancelled or the source
// connection is lost beyond recovery. It connects the source if
// needed and closes the sinks on exit.
func (d *Decoder) Run(ctx context.Context) error {
	if !d.source.IsConnected() {
		if err := d.source.Connect(ctx); err != nil {
			return nserrors.Wrap(err, "Decoder", "Run", "connecting source")
		}
	}
	d.setSourceGauge()

	d.logger.Info("decode loop started",
		"mode", d.cfg.Mode,
		"window_samples", d.cfg.WindowSamples(),
		"hop_samples", d.cfg.HopSamples())

	d.lastStatus = time.Now()
	defer d.shutdown()

	windowSamples := d.cfg.WindowSamples()
	hop := d.cfg.HopSamples()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("decode loop stopping", "reason", ctx.Err())
			return nil
		default:
		}

		// before the batch read: an idle source still reports on schedule
		if time.Since(d.lastStatus) >= d.cfg.StatusInterval {
			d.emitStatus()
			d.lastStatus = time.Now()
		}

		batch := d.source.ReadBatch(d.cfg.Acquisition.BatchSize)
		if len(batch) == 0 {
			if err := d.handleIdle(ctx); err != nil {
				return err
			}
			continue
		}

		d.ingest(batch)

		if d.left.Len() >= windowSamples {
			leftWin := d.left.Latest(windowSamples)
			rightWin := d.right.Latest(windowSamples)

			switch d.cfg.Mode {
			case config.ModeFocus:
				d.processFocusWindow(leftWin)
			default:
				d.processWindow(leftWin, rightWin)
			}

			d.left.Advance(hop)
			d.right.Advance(hop)
		}
	}
}

// handleIdle runs when a read returned nothing: either the source is
// healthy and momentarily quiet, or it dropped and needs a gated
// reconnect. Exhausting the reconnect budget is the loop's one fatal
// condition.
func (d *Decoder) handleIdle(ctx context.Context) error {
	if d.source.IsConnected() {
		sleepCtx(ctx, idleSleep)
		return nil
	}

	d.setSourceGauge()
	d.logger.Warn("connection lost, attempting reconnect")

	if d.source.Reconnect() {
		d.logger.Info("reconnected")
		d.setSourceGauge()
		return nil
	}

	if d.source.Statistics().ReconnectAttempts > d.cfg.Acquisition.MaxReconnectRetries {
		return nserrors.WrapFatal(nserrors.ErrNoConnection, "Decoder", "Run",
			"source connection lost beyond recovery")
	}

	sleepCtx(ctx, reconnectSleep)
	return nil
}

func (d *Decoder) ingest(batch []acquisition.Sample) {
	for _, s := range batch {
		if d.metrics != nil && d.left.Len() == d.left.Cap() {
			d.metrics.SamplesDropped.Add(2)
		}
		d.left.Append(s.Left)
		d.right.Append(s.Right)
	}
	d.samplesProcessed += int64(len(batch))

	if d.metrics != nil {
		d.metrics.SamplesReceived.Add(float64(len(batch)))
	}
}

// processWindow runs the dual-channel attention pipeline on one
// window of raw samples.
func (d *Decoder) processWindow(leftRaw, rightRaw []float64) {
	start := time.Now()

	leftF := d.chain.Preprocess(leftRaw)
	rightF := d.chain.Preprocess(rightRaw)

	lw := quality.Window{Raw: leftRaw, Filtered: leftF}
	rw := quality.Window{Raw: rightRaw, Filtered: rightF}

	score := d.assessor.ComputeQualityScore(lw, rw)
	lq := d.assessor.ComputeChannelQuality(lw)
	rq := d.assessor.ComputeChannelQuality(rw)

	feats := d.extractor.MinimalFeatures(leftF, rightF)

	r := Result{
		Timestamp:       time.Now(),
		SampleCount:     d.samplesProcessed,
		LeftAlphaPower:  feats.LeftAlphaPower,
		RightAlphaPower: feats.RightAlphaPower,
		QualityScore:    score,
		LeftSNRdB:       lq.SNRdB,
		RightSNRdB:      rq.SNRdB,
		LeftArtifact:    lq.HasArtifact,
		RightArtifact:   rq.HasArtifact,
	}

	if lq.HasArtifact || rq.HasArtifact {
		// degraded window: report it, but keep it out of the adaptive
		// calibration history
		d.logger.Debug("artifact detected",
			"left", lq.ArtifactType.String(), "right", rq.ArtifactType.String())

		r.Direction = decision.DirectionUnknown.String()
		r.SmoothedDirection = decision.DirectionUnknown.String()
		r.LeftArtifact = true
		r.RightArtifact = true
		r.ProcessingTimeMs = msSince(start)

		if d.metrics != nil {
			d.metrics.WindowsDegraded.Inc()
			if lq.HasArtifact {
				d.metrics.ArtifactsDetected.WithLabelValues("left", lq.ArtifactType.String()).Inc()
			}
			if rq.HasArtifact {
				d.metrics.ArtifactsDetected.WithLabelValues("right", rq.ArtifactType.String()).Inc()
			}
		}
		d.emitResult(r)
		return
	}

	dec := d.lateral.MakeDecision(feats.LeftAlphaPower, feats.RightAlphaPower)
	smoothed, _ := d.lateral.SmoothedDecision()

	elapsed := time.Since(start)
	d.pushProcTime(elapsed)
	d.windowsProcessed++

	r.LateralizationIdx = dec.LI
	r.Direction = dec.Direction.String()
	r.Confidence = dec.Confidence
	r.SmoothedDirection = smoothed.String()
	r.ProcessingTimeMs = float64(elapsed) / float64(time.Millisecond)

	if d.metrics != nil {
		d.metrics.ObserveWindow(dec.Direction.String(), elapsed, score)
		d.metrics.LateralizationIdx.Set(dec.LI)
		d.metrics.ChannelSNR.WithLabelValues("left").Set(lq.SNRdB)
		d.metrics.ChannelSNR.WithLabelValues("right").Set(rq.SNRdB)
	}

	d.emitResult(r)
}

// processFocusWindow runs the single-channel suppression pipeline.
func (d *Decoder) processFocusWindow(raw []float64) {
	start := time.Now()

	filtered := d.chain.Preprocess(raw)
	w := quality.Window{Raw: raw, Filtered: filtered}

	score := d.assessor.ComputeQualityScore(w, w)
	hasArtifact, artifactType := d.assessor.DetectArtifacts(w)

	alpha := d.chain.AlphaPower(filtered)
	snr := d.assessor.ComputeSNR(filtered)

	dec := d.focus.MakeDecision(alpha, score, snr, hasArtifact)
	smoothed, agreement := d.focus.SmoothedDecision()

	elapsed := time.Since(start)
	d.pushProcTime(elapsed)
	d.windowsProcessed++

	r := FocusResult{
		Timestamp:        time.Now(),
		SampleCount:      d.samplesProcessed,
		AlphaPower:       alpha,
		BaselineAlpha:    d.focus.Baseline().Mean,
		SuppressionRatio: dec.Ratio,
		State:            dec.State.String(),
		Confidence:       dec.Confidence,
		SmoothedState:    smoothed.String(),
		Agreement:        agreement,
		QualityScore:     score,
		SNRdB:            snr,
		Artifact:         hasArtifact,
		ProcessingTimeMs: float64(elapsed) / float64(time.Millisecond),
	}

	if d.metrics != nil {
		d.metrics.ObserveWindow(dec.State.String(), elapsed, score)
		if hasArtifact {
			d.metrics.ArtifactsDetected.WithLabelValues("left", artifactType.String()).Inc()
		}
	}

	for _, sink := range d.sinks {
		if err := sink.WriteFocus(r); err != nil {
			d.recordSinkError(sink, err)
		} else if d.metrics != nil {
			d.metrics.ResultsPublished.WithLabelValues(sink.Name()).Inc()
		}
	}
}

// Calibrate collects baseline windows from the source for the given
// duration and calibrates the focus engine from them. The subject
// should be relaxed with eyes closed for the whole span.
func (d *Decoder) Calibrate(ctx context.Context, dur time.Duration) error {
	powers, qualities, err := d.CollectAlphaPowers(ctx, dur)
	if err != nil {
		return err
	}
	if err := d.focus.CalibrateBaseline(powers, qualities); err != nil {
		return nserrors.Wrap(err, "Decoder", "Calibrate", "calibrating baseline")
	}
	return nil
}

// Verify runs the two-phase focus verification protocol: one relaxed
// span, one task-engaged span, compared through the calibrated
// baseline. The caller times operator instructions around the phases.
func (d *Decoder) Verify(ctx context.Context, phase time.Duration) (decision.VerificationResult, error) {
	d.logger.Info("verification phase 1: relax, eyes closed", "duration", phase)
	relaxed, _, err := d.CollectAlphaPowers(ctx, phase)
	if err != nil {
		return decision.VerificationResult{}, err
	}

	d.logger.Info("verification phase 2: mental arithmetic", "duration", phase)
	focused, _, err := d.CollectAlphaPowers(ctx, phase)
	if err != nil {
		return decision.VerificationResult{}, err
	}

	return d.focus.VerifySuppression(relaxed, focused)
}

// CollectAlphaPowers gathers per-window alpha powers and quality
// scores from the left channel for one labeled phase.
func (d *Decoder) CollectAlphaPowers(ctx context.Context, dur time.Duration) (powers, qualities []float64, err error) {
	if !d.source.IsConnected() {
		if err := d.source.Connect(ctx); err != nil {
			return nil, nil, nserrors.Wrap(err, "Decoder", "CollectAlphaPowers", "connecting source")
		}
	}

	windowSamples := d.cfg.WindowSamples()
	hop := d.cfg.HopSamples()
	deadline := time.Now().Add(dur)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return powers, qualities, nserrors.Wrap(ctx.Err(), "Decoder", "CollectAlphaPowers", "collecting windows")
		default:
		}

		batch := d.source.ReadBatch(d.cfg.Acquisition.BatchSize)
		if len(batch) == 0 {
			sleepCtx(ctx, idleSleep)
			continue
		}
		d.ingest(batch)

		if d.left.Len() >= windowSamples {
			raw := d.left.Latest(windowSamples)
			filtered := d.chain.Preprocess(raw)
			w := quality.Window{Raw: raw, Filtered: filtered}
			powers = append(powers, d.chain.AlphaPower(filtered))
			qualities = append(qualities, d.assessor.ComputeQualityScore(w, w))
			d.left.Advance(hop)
			d.right.Advance(hop)
		}
	}
	return powers, qualities, nil
}

func (d *Decoder) emitResult(r Result) {
	for _, sink := range d.sinks {
		if err := sink.WriteResult(r); err != nil {
			d.recordSinkError(sink, err)
		} else if d.metrics != nil {
			d.metrics.ResultsPublished.WithLabelValues(sink.Name()).Inc()
		}
	}
}

func (d *Decoder) recordSinkError(sink Sink, err error) {
	d.mu.Lock()
	d.errors++
	d.lastErr = err.Error()
	d.mu.Unlock()

	d.logger.Error("sink write failed", "sink", sink.Name(), "error", err)
	if d.metrics != nil {
		d.metrics.PublishErrors.WithLabelValues(sink.Name()).Inc()
	}
}

// emitStatus logs the aggregate report, pushes it to the sinks, and
// syncs the acquisition gauges.
func (d *Decoder) emitStatus() {
	stats := d.source.Statistics()

	s := Status{
		Timestamp:        time.Now(),
		Mode:             d.cfg.Mode,
		SamplesProcessed: d.samplesProcessed,
		WindowsProcessed: d.windowsProcessed,
		Acquisition:      stats,
		AvgProcessingMs:  avgOf(d.procTimes),
		MaxProcessingMs:  maxOf(d.procTimes),
	}

	switch d.cfg.Mode {
	case config.ModeFocus:
		fs := d.focus.Statistics()
		s.Focus = &fs
	default:
		cal := d.lateral.CalibrationStatus()
		dec := d.lateral.Statistics()
		s.Calibration = &cal
		s.Decisions = &dec
	}

	d.logger.Info("status",
		"samples", s.SamplesProcessed,
		"windows", s.WindowsProcessed,
		"connected", stats.Connected,
		"corruption_pct", stats.CorruptionRatePct,
		"avg_processing_ms", s.AvgProcessingMs,
		"max_processing_ms", s.MaxProcessingMs)

	for _, sink := range d.sinks {
		if err := sink.WriteStatus(s); err != nil {
			d.recordSinkError(sink, err)
		}
	}

	if d.metrics != nil {
		d.setSourceGauge()
		if delta := stats.PacketsCorrupted - d.prevCorrupted; delta > 0 {
			d.metrics.PacketsCorrupted.Add(float64(delta))
			d.prevCorrupted = stats.PacketsCorrupted
		}
		if delta := stats.ReconnectAttempts - d.prevReconnects; delta > 0 {
			d.metrics.SourceReconnects.Add(float64(delta))
			d.prevReconnects = stats.ReconnectAttempts
		}
	}
}

func (d *Decoder) shutdown() {
	d.setSourceGauge()
	if err := d.source.Close(); err != nil {
		d.logger.Error("source close failed", "error", err)
	}
	for _, sink := range d.sinks {
		if err := sink.Close(); err != nil {
			d.logger.Error("sink close failed", "sink", sink.Name(), "error", err)
		}
	}

	d.logger.Info("decode loop stopped",
		"samples_processed", d.samplesProcessed,
		"windows_processed", d.windowsProcessed)
}

func (d *Decoder) pushProcTime(elapsed time.Duration) {
	ms := float64(elapsed) / float64(time.Millisecond)
	if len(d.procTimes) == procTimesWindow {
		copy(d.procTimes, d.procTimes[1:])
		d.procTimes = d.procTimes[:len(d.procTimes)-1]
	}
	d.procTimes = append(d.procTimes, ms)
}

func (d *Decoder) setSourceGauge() {
	if d.metrics == nil {
		return
	}
	if d.source.IsConnected() {
		d.metrics.SourceConnected.Set(1)
	} else {
		d.metrics.SourceConnected.Set(0)
	}
}

func avgOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func maxOf(xs []float64) float64 {
	var m float64
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
