package natspub

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/c360/neurostream/config"
	"github.com/c360/neurostream/errors"
	"github.com/c360/neurostream/natsclient"
	"github.com/c360/neurostream/realtime"
)

// Publisher sends decision records on the result subject and periodic
// status reports on the status subject. It does not own the NATS
// client; the caller connects it before the loop starts and Close here
// only detaches.
type Publisher struct {
	client        *natsclient.Client
	subject       string
	statusSubject string
	logger        *slog.Logger

	published atomic.Int64
	errs      atomic.Int64
}

var _ realtime.Sink = (*Publisher)(nil)

// New builds a publisher over an existing client. Subject defaults
// come from the config package when the fields are empty.
func New(client *natsclient.Client, cfg config.NATSConfig, logger *slog.Logger) (*Publisher, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "natspub", "New", "nats client required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	subject := cfg.Subject
	if subject == "" {
		subject = config.Default().Outputs.NATS.Subject
	}
	statusSubject := cfg.StatusSubject
	if statusSubject == "" {
		statusSubject = config.Default().Outputs.NATS.StatusSubject
	}
	return &Publisher{
		client:        client,
		subject:       subject,
		statusSubject: statusSubject,
		logger:        logger,
	}, nil
}

// Name identifies the sink in logs and metrics labels.
func (p *Publisher) Name() string { return "nats" }

// Subject returns the decision record subject.
func (p *Publisher) Subject() string { return p.subject }

// StatusSubject returns the status report subject.
func (p *Publisher) StatusSubject() string { return p.statusSubject }

// WriteResult publishes one attention record.
func (p *Publisher) WriteResult(r realtime.Result) error {
	return p.publish(p.subject, r)
}

// WriteFocus publishes one focus record. Focus records share the
// result subject; consumers discriminate on the field set.
func (p *Publisher) WriteFocus(r realtime.FocusResult) error {
	return p.publish(p.subject, r)
}

// WriteStatus publishes one status report.
func (p *Publisher) WriteStatus(s realtime.Status) error {
	return p.publish(p.statusSubject, s)
}

func (p *Publisher) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		p.errs.Add(1)
		return errors.WrapInvalid(err, "natspub", "publish", "marshal record")
	}
	if err := p.client.Publish(subject, data); err != nil {
		p.errs.Add(1)
		return err
	}
	p.published.Add(1)
	return nil
}

// Published reports how many records went out successfully.
func (p *Publisher) Published() int64 { return p.published.Load() }

// Close detaches from the client without closing it; the client is
// shared and its owner shuts it down.
func (p *Publisher) Close() error {
	p.logger.Info("nats publishing stopped",
		"subject", p.subject,
		"published", p.published.Load(),
		"errors", p.errs.Load())
	return nil
}
