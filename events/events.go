// Package events publishes sabotage outcomes to NATS so other services (leaderboards,
// analytics) can follow the game without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/coderonin/sabotage"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "coderonin.sabotage"

// SabotageEvent is the JSON payload published for each orchestration.
type SabotageEvent struct {
	RequestID   string    `json:"request_id"`
	Category    string    `json:"category"`
	Tactic      string    `json:"tactic,omitempty"`
	Skill       string    `json:"skill,omitempty"`
	ChallengeID string    `json:"challenge_id,omitempty"`
	DocTier     string    `json:"doc_tier,omitempty"`
	Outcome     string    `json:"outcome"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher is a sabotage.Observer that emits one event per report.
type Publisher struct {
	conn   Conn
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		prefix: prefix,
		now:    time.Now,
		logger: logger,
	}
}

// Connect dials NATS at url. The returned close function drains the connection.
func Connect(url, prefix string, logger *slog.Logger) (*Publisher, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("coderonin"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	closeFn := func() {
		if err := nc.Drain(); err != nil {
			logger.Warn("NATS drain failed", "error", err)
			nc.Close()
		}
	}
	return NewPublisher(nc, prefix, logger), closeFn, nil
}

// Subject returns the subject an outcome is published on.
func (p *Publisher) Subject(outcome sabotage.Outcome) string {
	return p.prefix + "." + string(outcome)
}

// Observe publishes the report. Failures are logged, never returned.
func (p *Publisher) Observe(_ context.Context, r sabotage.Report) {
	event := SabotageEvent{
		RequestID:   r.RequestID,
		Category:    string(r.Category),
		Tactic:      r.Tactic,
		Skill:       r.Skill,
		ChallengeID: r.ChallengeID,
		DocTier:     string(r.DocTier),
		Outcome:     string(r.Outcome),
		ErrorKind:   string(r.ErrorKind),
		DurationMs:  r.Duration.Milliseconds(),
		Timestamp:   p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal sabotage event", "request_id", r.RequestID, "error", err)
		return
	}

	subject := p.Subject(r.Outcome)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish sabotage event",
			"subject", subject,
			"request_id", r.RequestID,
			"error", err)
	}
}
