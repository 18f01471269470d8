package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"RSIBoard/internal/domain/models"
	domrepo "RSIBoard/internal/domain/repository"
	icache "RSIBoard/internal/service/cache"
)

// messageProducer is the slice of pkg/kafka.Producer the publisher needs.
// The producer's owner closes it.
type messageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaSnapshotPublisher ships every published snapshot to a Kafka topic.
// Message key is the cycle number.
type KafkaSnapshotPublisher struct {
	producer messageProducer
	topic    string
	layout   models.BoardLayout
}

func NewKafkaSnapshotPublisher(producer messageProducer, topic string, layout models.BoardLayout) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic, layout: layout}
}

func (p *KafkaSnapshotPublisher) Name() string { return "kafka" }

func (p *KafkaSnapshotPublisher) PublishSnapshot(ctx context.Context, s *models.Snapshot) error {
	msg := p.layout.Message(s)
	if err := p.producer.Publish(ctx, p.topic, []byte(strconv.FormatUint(msg.Cycle, 10)), msg); err != nil {
		return fmt.Errorf("kafka publish snapshot: %w", err)
	}
	return nil
}

func (p *KafkaSnapshotPublisher) Close() error { return nil }

// CacheSnapshotPublisher mirrors the latest board into a BytesCache (Redis)
// so other processes can read it without calling the API.
type CacheSnapshotPublisher struct {
	cache  icache.BytesCache
	key    string
	ttl    time.Duration
	layout models.BoardLayout
	closer func() error
}

func NewCacheSnapshotPublisher(cache icache.BytesCache, key string, ttl time.Duration, layout models.BoardLayout, closer func() error) *CacheSnapshotPublisher {
	return &CacheSnapshotPublisher{cache: cache, key: key, ttl: ttl, layout: layout, closer: closer}
}

func (p *CacheSnapshotPublisher) Name() string { return "cache" }

func (p *CacheSnapshotPublisher) PublishSnapshot(ctx context.Context, s *models.Snapshot) error {
	b, err := json.Marshal(p.layout.Message(s))
	if err != nil {
		return fmt.Errorf("marshal board: %w", err)
	}
	if err := p.cache.SetBytes(ctx, p.key, b, p.ttl); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

func (p *CacheSnapshotPublisher) Close() error {
	if p.closer != nil {
		return p.closer()
	}
	return nil
}

var (
	_ domrepo.SnapshotPublisher = (*KafkaSnapshotPublisher)(nil)
	_ domrepo.SnapshotPublisher = (*CacheSnapshotPublisher)(nil)
)
