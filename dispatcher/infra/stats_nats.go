package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"account-dispatcher/dispatcher/domain"

	"github.com/nats-io/nats.go"
)

// Publisher é o pedaço do *nats.Conn que o store usa.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// NatsStatsStore publica cada desfecho como JSON em `<subject>.<outcome>`,
// para agregadores externos assinarem (ex: "dispatch.events.>").
type NatsStatsStore struct {
	pub     Publisher
	subject string
}

func NewNatsStatsStore(pub Publisher, subject string) *NatsStatsStore {
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = "dispatch.events"
	}
	return &NatsStatsStore{pub: pub, subject: subject}
}

func (s *NatsStatsStore) Subject(outcome string) string {
	if outcome == "" {
		outcome = "unknown"
	}
	return s.subject + "." + outcome
}

func (s *NatsStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	if s == nil || s.pub == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stats event: %w", err)
	}
	return s.pub.Publish(s.Subject(ev.Outcome), data)
}
