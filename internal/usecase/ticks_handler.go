package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domrepo "RSIBoard/internal/domain/repository"
	"RSIBoard/internal/service/quotes"
	pkgkafka "RSIBoard/pkg/kafka"
	"RSIBoard/pkg/util"

	"github.com/shopspring/decimal"
)

// TickHandler consumes trade ticks from Kafka into the quote book.
type TickHandler struct {
	topic   string
	sink    quotes.Sink
	metrics domrepo.Metrics
}

func NewTickHandler(topic string, sink quotes.Sink, metrics domrepo.Metrics) *TickHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &TickHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *TickHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, c, v}; t in seconds or milliseconds.
func (h *TickHandler) Handle(_ context.Context, b []byte) error {
	var m struct {
		Symbol string          `json:"symbol"`
		T      int64           `json:"t"`
		C      decimal.Decimal `json:"c"`
		V      float64         `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("tick_unmarshal")
		return fmt.Errorf("decode tick: %w", err)
	}
	if m.Symbol == "" || !m.C.IsPositive() {
		h.metrics.RecordError("tick_invalid")
		return nil
	}

	ts := util.UnixAuto(m.T)
	h.metrics.RecordLatency("tick_e2e", time.Since(ts).Seconds())
	h.sink.Update(quotes.Tick{Symbol: m.Symbol, Price: m.C, Time: ts})
	return nil
}

var _ pkgkafka.MessageHandler = (*TickHandler)(nil)
