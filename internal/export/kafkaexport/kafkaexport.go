// Package kafkaexport publishes closed cases to a Kafka topic for
// downstream audit and analytics consumers. It implements
// caseflow.Exporter.
package kafkaexport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/recourse/internal/caseflow"
	"github.com/linnemanlabs/recourse/internal/plan"
)

// messageWriter is the part of kafka.Writer the exporter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Exporter writes one case-closed event per case, keyed by case ID so
// re-exports of the same case land in the same partition.
type Exporter struct {
	writer messageWriter
	topic  string
	logger log.Logger
}

// New creates an exporter writing to topic on the given brokers.
func New(brokers []string, topic string, logger log.Logger) *Exporter {
	if logger == nil {
		logger = log.Nop()
	}
	return &Exporter{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		topic:  topic,
		logger: logger,
	}
}

// event is the wire shape of a case-closed record. It carries the
// decision trail, not the full conversation.
type event struct {
	CaseID          string        `json:"case_id"`
	TicketID        string        `json:"ticket_id"`
	Status          string        `json:"status"`
	Decision        string        `json:"decision"`
	Disposition     string        `json:"disposition"`
	Intents         []string      `json:"intents,omitempty"`
	MissingEvidence []string      `json:"missing_evidence,omitempty"`
	PolicyFlags     []string      `json:"policy_flags,omitempty"`
	Executed        []plan.Result `json:"executed,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	CompletedAt     time.Time     `json:"completed_at,omitempty"`
	ExportedAt      time.Time     `json:"exported_at"`
}

// Export publishes the case and returns the artifact reference for the
// state's artifact map.
func (e *Exporter) Export(ctx context.Context, st *caseflow.State) (map[string]string, error) {
	ev := event{
		CaseID:          st.ID,
		Status:          string(st.Status),
		Decision:        string(st.Decision),
		Disposition:     string(caseflow.DispositionOf(st)),
		Intents:         st.Intents,
		MissingEvidence: st.MissingEvidence,
		PolicyFlags:     st.PolicyFlags,
		Executed:        st.Executed,
		CreatedAt:       st.CreatedAt,
		CompletedAt:     st.CompletedAt,
		ExportedAt:      time.Now().UTC(),
	}
	if st.Ticket != nil {
		ev.TicketID = st.Ticket.ID
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("kafkaexport: marshal case %s: %w", st.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(st.ID),
		Value: data,
	}
	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		return nil, fmt.Errorf("kafkaexport: write case %s: %w", st.ID, err)
	}

	e.logger.Info(ctx, "case exported", "case_id", st.ID, "topic", e.topic)
	return map[string]string{"kafka_topic": e.topic, "kafka_key": st.ID}, nil
}

// Close shuts down the Kafka writer.
func (e *Exporter) Close() error {
	return e.writer.Close()
}
