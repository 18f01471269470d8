package usecase

import (
	"context"
	"testing"
	"time"

	"RSIBoard/internal/service/quotes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickHandler_UpdatesBook(t *testing.T) {
	book := quotes.NewBook(0)
	h := NewTickHandler("ticks", book, nil)
	assert.Equal(t, "ticks", h.Topic())

	require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"SBER","t":1715000000000,"c":301.25,"v":10}`)))
	tick, ok := book.Get("SBER")
	require.True(t, ok)
	assert.Equal(t, "301.25", tick.Price.String())
	assert.Equal(t, time.UnixMilli(1715000000000).UTC(), tick.Time)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"SBER","t":1714999999,"c":299}`)))
	tick, _ = book.Get("SBER")
	assert.Equal(t, "301.25", tick.Price.String(), "older tick ignored")
}

func TestTickHandler_BadPayloads(t *testing.T) {
	book := quotes.NewBook(0)
	h := NewTickHandler("ticks", book, nil)

	assert.Error(t, h.Handle(context.Background(), []byte(`{not json`)))
	assert.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"","t":1,"c":1}`)))
	assert.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"GAZP","t":1,"c":0}`)))
	assert.Zero(t, book.Len())
}
