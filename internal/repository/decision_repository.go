package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"SigPulse/internal/domain/models"
	"SigPulse/internal/domain/repository"
	pkgkafka "SigPulse/pkg/kafka"
)

// ClickHouseDecisionStore implements DecisionStore for ClickHouse.
type ClickHouseDecisionStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseDecisionStore creates the ClickHouse decision store.
func NewClickHouseDecisionStore(db *sql.DB, table string) repository.DecisionStore {
	return &ClickHouseDecisionStore{db: db, table: table}
}

func (s *ClickHouseDecisionStore) Init(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts DateTime64(3),
		symbol LowCardinality(String),
		class LowCardinality(String),
		approved UInt8,
		confidence Float64,
		reasons String,
		processing_ms Float64,
		detail String
	) ENGINE = MergeTree() ORDER BY (symbol, ts)`, s.table)
	_, err := s.db.ExecContext(ctx, q)
	return err
}

func decisionArgs(d *models.ConfirmedSignal) []interface{} {
	approved := uint8(0)
	if d.Approved {
		approved = 1
	}
	detail, _ := json.Marshal(struct {
		Volume    *models.VolumeConfirmation `json:"volume,omitempty"`
		Consensus *models.ConsensusResult    `json:"consensus,omitempty"`
	}{d.Volume, d.Consensus})
	return []interface{}{
		d.Timestamp,
		d.Symbol,
		d.Class.String(),
		approved,
		d.Confidence,
		strings.Join(d.Reasons, ","),
		float64(d.ProcessingTime) / float64(time.Millisecond),
		string(detail),
	}
}

func (s *ClickHouseDecisionStore) Store(ctx context.Context, d *models.ConfirmedSignal) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, class, approved, confidence, reasons, processing_ms, detail) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q, decisionArgs(d)...)
	return err
}

func (s *ClickHouseDecisionStore) StoreBatch(ctx context.Context, signals []*models.ConfirmedSignal) error {
	if len(signals) == 0 {
		return nil
	}
	// Multi-row VALUES insert to reduce round-trips.
	const chunkSize = 2000
	for start := 0; start < len(signals); start += chunkSize {
		end := start + chunkSize
		if end > len(signals) {
			end = len(signals)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, d := range signals[start:end] {
			if d == nil || d.Symbol == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, decisionArgs(d)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, class, approved, confidence, reasons, processing_ms, detail) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseDecisionStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.ConfirmedSignal, error) {
	q := fmt.Sprintf("SELECT ts, symbol, class, approved, confidence, reasons, processing_ms FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ConfirmedSignal
	for rows.Next() {
		var d models.ConfirmedSignal
		var class, reasons string
		var approved uint8
		var procMs float64
		if err := rows.Scan(&d.Timestamp, &d.Symbol, &class, &approved, &d.Confidence, &reasons, &procMs); err != nil {
			return nil, err
		}
		d.Class, _ = models.ParseSignalClass(class)
		d.Approved = approved != 0
		if reasons != "" {
			d.Reasons = strings.Split(reasons, ",")
		}
		d.ProcessingTime = time.Duration(procMs * float64(time.Millisecond))
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (s *ClickHouseDecisionStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseDecisionStore) Close() error {
	return nil // Managed by pkg
}

// KafkaDecisionPublisher implements DecisionPublisher for Kafka.
type KafkaDecisionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaDecisionPublisher creates the Kafka decision publisher.
func NewKafkaDecisionPublisher(producer *pkgkafka.Producer, topic string) repository.DecisionPublisher {
	return &KafkaDecisionPublisher{producer: producer, topic: topic}
}

func decisionPayload(d *models.ConfirmedSignal) map[string]interface{} {
	m := map[string]interface{}{
		"symbol":        d.Symbol,
		"class":         d.Class.String(),
		"approved":      d.Approved,
		"confidence":    d.Confidence,
		"reasons":       d.Reasons,
		"processing_ms": float64(d.ProcessingTime) / float64(time.Millisecond),
		"ts":            d.Timestamp.UnixMilli(),
	}
	if d.Volume != nil {
		m["volume"] = d.Volume
	}
	if d.Consensus != nil {
		m["consensus"] = d.Consensus
	}
	return m
}

func (p *KafkaDecisionPublisher) Publish(ctx context.Context, d *models.ConfirmedSignal) error {
	return p.producer.Publish(ctx, p.topic, []byte(d.Symbol), decisionPayload(d))
}

func (p *KafkaDecisionPublisher) PublishBatch(ctx context.Context, signals []*models.ConfirmedSignal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(signals))
	for i, d := range signals {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(d.Symbol),
			Value: decisionPayload(d),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaDecisionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
