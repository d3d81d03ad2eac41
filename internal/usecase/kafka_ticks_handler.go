package usecase

import (
	"context"
	"encoding/json"
	"time"

	"SigPulse/internal/domain/models"
	domrepo "SigPulse/internal/domain/repository"
	mid "SigPulse/internal/middleware"
	pkgkafka "SigPulse/pkg/kafka"
)

// KafkaTicksHandler consumes tick messages from Kafka and feeds the pipeline.
// Used when the engine sits behind an ingest topic instead of reading the
// exchange stream directly.
type KafkaTicksHandler struct {
	topic   string
	proc    mid.Proc
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, proc mid.Proc, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, c, v}
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	ts := time.Unix(m.T, 0)
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ts).Seconds())

	err := h.proc.Process(ctx, &models.Tick{
		Symbol:    m.Symbol,
		Price:     m.C,
		Volume:    m.V,
		Timestamp: ts,
	})
	if err != nil {
		h.metrics.RecordError("consumer_process")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
