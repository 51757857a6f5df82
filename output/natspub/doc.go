// Package natspub publishes decision records and status reports to
// NATS subjects as JSON, so dashboards and downstream services can
// subscribe without touching the decode loop.
package natspub
