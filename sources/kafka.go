package sources

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/cascadeio/cascade/internal/logger"
	"github.com/cascadeio/cascade/stream"
)

// KafkaConfig holds the connection details of a Kafka source.
type KafkaConfig struct {
	BootstrapServers string   `koanf:"bootstrap_servers"`
	Group            string   `koanf:"group"`
	Topics           []string `koanf:"topics"`
}

// KafkaSource consumes one or more Kafka topics as micro-batches. Each
// record becomes an event whose stream is the record's topic, so a join
// operator can route records by topic.
type KafkaSource struct {
	cfg    KafkaConfig
	client *kgo.Client
	logger zerolog.Logger
}

// NewKafkaSource creates a Kafka source. Connect happens in Open.
func NewKafkaSource(cfg KafkaConfig) (*KafkaSource, error) {
	if cfg.BootstrapServers == "" || cfg.Group == "" || len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("missing kafka config values")
	}
	return &KafkaSource{
		cfg:    cfg,
		logger: logger.GetLogger("kafka"),
	}, nil
}

// Open connects to the Kafka cluster.
func (k *KafkaSource) Open(ctx context.Context) error {
	k.logger.Trace().Msg("connecting to kafka cluster as a source")
	opts := []kgo.Opt{
		kgo.SeedBrokers(k.cfg.BootstrapServers),
		kgo.ConsumerGroup(k.cfg.Group),
		kgo.ConsumeTopics(k.cfg.Topics...),
		kgo.AutoCommitMarks(),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		k.logger.Err(err).Msg("failed to create kafka consumer")
		return err
	}
	k.client = client
	return nil
}

// Poll fetches up to max records and marks them for commit.
func (k *KafkaSource) Poll(ctx context.Context, max int) ([]stream.Event, error) {
	fetches := k.client.PollRecords(ctx, max)
	if err := fetches.Err0(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	var events []stream.Event
	fetches.EachRecord(func(record *kgo.Record) {
		events = append(events, stream.Event{
			Stream: record.Topic,
			Key:    record.Key,
			Value:  record.Value,
			Time:   record.Timestamp,
		})
		k.client.MarkCommitRecords(record)
	})

	k.logger.Trace().Int("records", len(events)).Msg("polled kafka records")
	return events, nil
}

// Close closes the Kafka client.
func (k *KafkaSource) Close() error {
	if k.client != nil {
		k.client.Close()
	}
	return nil
}
