package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/collision-weather-etl/internal/config"
	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes enriched collision events to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer    *kafkago.Writer
	batchSize int
	runID     string
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, runID string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, batchSize: max(cfg.BatchSize, 1), runID: runID, logger: logger}
}

// enrichedMessage is the JSON payload of one published event. Fields maps the
// original collision columns to their raw values.
type enrichedMessage struct {
	ID       string            `json:"id"`
	MergeKey *string           `json:"merge_key"`
	Fields   map[string]string `json:"fields"`
	Weather  weatherPayload    `json:"weather"`
}

type weatherPayload struct {
	Temperature   *float64 `json:"temperature"`
	Precipitation *float64 `json:"precipitation"`
	Visibility    *float64 `json:"visibility"`
	Description   *string  `json:"weather_desc"`
	IsRain        bool     `json:"is_rain"`
	IsSnow        bool     `json:"is_snow"`
}

// Load publishes every event in input order, batchSize messages per WriteMessages call.
func (w *Writer) Load(ctx context.Context, table domain.EnrichedTable) error {
	sent := 0
	for start := 0; start < len(table.Events); start += w.batchSize {
		end := min(start+w.batchSize, len(table.Events))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(table.Columns, table.Events[i], w.runID)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish batch at row %d: %w", start+1, err)
		}
		sent += len(msgs)
	}
	w.logger.Info("enriched collisions published", "topic", w.writer.Topic, "messages", sent)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an enriched event into a Kafka message keyed by
// the collision ID.
func serializeToMessage(columns []string, e domain.EnrichedCollisionEvent, runID string) (kafkago.Message, error) {
	payload := enrichedMessage{
		ID:     e.Event.ID,
		Fields: make(map[string]string, len(columns)),
		Weather: weatherPayload{
			Temperature:   e.Weather.Temperature,
			Precipitation: e.Weather.Precipitation,
			Visibility:    e.Weather.Visibility,
			Description:   e.Weather.Description,
			IsRain:        e.IsRain,
			IsSnow:        e.IsSnow,
		},
	}
	for i, col := range columns {
		if i < len(e.Event.Fields) {
			payload.Fields[col] = e.Event.Fields[i]
		}
	}
	if e.HasKey {
		key := e.JoinKey.Format(domain.JoinKeyLayout)
		payload.MergeKey = &key
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize enriched collision: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(e.Event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "matched", Value: []byte(strconv.FormatBool(e.Matched))},
		},
	}, nil
}
