package infra

import (
	"context"

	"account-dispatcher/dispatcher/domain"

	"github.com/sirupsen/logrus"
)

// LogStatsStore registra cada desfecho como uma linha estruturada (logrus).
// Sucesso vai em Info; rejeições em Warn; falhas de upstream/rede em Error.
type LogStatsStore struct {
	log *logrus.Entry
}

func NewLogStatsStore(log *logrus.Entry) *LogStatsStore {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LogStatsStore{log: log}
}

func (s *LogStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	entry := s.log.WithFields(logrus.Fields{
		"request_id": ev.RequestID,
		"account":    ev.Username,
		"outcome":    ev.Outcome,
		"method":     ev.Method,
		"host":       ev.Host,
		"duration":   ev.Duration.String(),
	})
	if ev.StatusCode > 0 {
		entry = entry.WithField("status", ev.StatusCode)
	}

	switch ev.Outcome {
	case domain.OutcomeOK:
		entry.Info("dispatch completed")
	case domain.OutcomeUpstreamError, domain.OutcomeNetworkError:
		entry.Error("dispatch failed")
	default:
		entry.Warn("dispatch refused")
	}
	return nil
}
