// Package component defines the lifecycle contract shared by the
// pipeline's long-running pieces: acquisition sources, the decode loop,
// and result emitters.
//
// Every component follows the same pattern:
//   - Initialize() error                // setup only, no context
//   - Start(ctx context.Context) error  // begin work, ctx bounds it
//   - Stop(timeout time.Duration) error // graceful shutdown
//
// Components never store the context; it arrives as a Start parameter
// and the owner cancels it to force shutdown.
package component

import (
	"context"
	"time"
)

// State is the lifecycle state of a component.
type State int

const (
	StateCreated State = iota
	StateInitialized
	StateStarted
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Component is the lifecycle contract for long-running pipeline pieces.
type Component interface {
	// Meta returns basic component information.
	Meta() Metadata

	// Health returns current health status.
	Health() HealthStatus

	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// Metadata describes what a component is.
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "source", "decoder", "output"
	Description string `json:"description"`
	Version     string `json:"version"`
}

// HealthStatus describes the current health of a component.
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// FlowMetrics describes data flow through a component.
type FlowMetrics struct {
	ItemsPerSecond float64   `json:"items_per_second"`
	ErrorRate      float64   `json:"error_rate"`
	LastActivity   time.Time `json:"last_activity"`
}
