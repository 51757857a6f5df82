// Package neurostream decodes attention state from a two-channel EEG
// headband in real time.
//
// # Pipeline
//
// Samples flow through a fixed chain:
//
//	acquisition → buffering → dsp (filters) → quality gating →
//	feature extraction → decision engine → sinks
//
// The acquisition package reads "timestamp,left,right" packets from a
// serial headset (or synthesizes them with the simulator), the dsp
// package runs notch/bandpass filtering and Welch spectral
// estimation, quality assesses artifacts and SNR, and the decision
// package holds the two engines: hemispheric lateralization for
// left/right attention and alpha suppression for focus/relaxation.
// The realtime package ties them together in a single-threaded
// sliding-window loop and emits records to the output sinks (CSV
// file, NATS subjects, WebSocket stream).
//
// # Layout
//
//   - cmd/neurostream: CLI entry point
//   - acquisition: serial and simulated sample sources
//   - dsp, feature, quality: per-window signal processing
//   - decision: lateralization and focus engines
//   - realtime: decode loop and record types
//   - output/...: result sinks
//   - config, errors, metric, natsclient, component: shared
//     infrastructure
//
// Long-running pieces follow the component lifecycle contract
// (Initialize, Start, Stop); errors carry a transient/fatal/invalid
// classification so the loop knows what to retry.
package neurostream
