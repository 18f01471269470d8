package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	applogger "RSIBoard/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      chan kafka.Message
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type countingHandler struct {
	topic    string
	calls    atomic.Int32
	failures int32
	panicky  bool
}

func (h *countingHandler) Topic() string { return h.topic }

func (h *countingHandler) Handle(_ context.Context, _ []byte) error {
	n := h.calls.Add(1)
	if h.panicky {
		panic("boom")
	}
	if n <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestConsumer(t *testing.T, r reader, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	c, err := NewConsumer(applogger.Nop(), opts...)
	require.NoError(t, err)
	c.newReader = func(string) reader { return r }
	return c
}

func TestNewConsumer_RequiresBrokers(t *testing.T) {
	_, err := NewConsumer(nil)
	assert.Error(t, err)
}

func TestConsumer_StartWithoutHandlers(t *testing.T) {
	c := newTestConsumer(t, newFakeReader())
	assert.Error(t, c.Start())
}

func TestConsumer_RetriesThenCommits(t *testing.T) {
	r := newFakeReader(kafka.Message{Topic: "ticks", Offset: 1}, kafka.Message{Topic: "ticks", Offset: 2})
	h := &countingHandler{topic: "ticks", failures: 1}
	c := newTestConsumer(t, r, WithConsumerWorkers(2))
	c.RegisterHandler(h)
	require.NoError(t, c.Start())

	assert.Eventually(t, func() bool { return r.committedCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), h.calls.Load())
	require.NoError(t, c.Stop(context.Background()))
	assert.True(t, r.closed)
}

func TestConsumer_PanicIsContained(t *testing.T) {
	r := newFakeReader(kafka.Message{Topic: "ticks", Offset: 9})
	h := &countingHandler{topic: "ticks", panicky: true}
	c := newTestConsumer(t, r)
	c.RegisterHandler(h)
	require.NoError(t, c.Start())

	assert.Eventually(t, func() bool { return r.committedCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), h.calls.Load(), "initial attempt plus two retries")
	require.NoError(t, c.Stop(context.Background()))
}

func TestConsumer_StopIsIdempotent(t *testing.T) {
	c := newTestConsumer(t, newFakeReader())
	c.RegisterHandler(&countingHandler{topic: "ticks"})
	require.NoError(t, c.Start())
	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestEncode(t *testing.T) {
	b, err := encode([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encode(map[string]int{"cycle": 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cycle":3}`, string(b))

	_, err = encode(make(chan int))
	assert.Error(t, err)
}

func TestNewProducer(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("zstd"))
	require.NoError(t, err)
	assert.Equal(t, kafka.Zstd, p.writer.Compression)
	assert.NoError(t, p.Close())
}
