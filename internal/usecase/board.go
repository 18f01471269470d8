package usecase

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RSIBoard/internal/domain/models"
	domrepo "RSIBoard/internal/domain/repository"
	icache "RSIBoard/internal/service/cache"
	"RSIBoard/pkg/util"
)

var (
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrUnknownTimeframe  = errors.New("unknown timeframe")
)

// StateReporter exposes the refresher state for health checks.
type StateReporter interface {
	State() RefreshState
}

// BoardUseCase answers read queries against the latest snapshot.
type BoardUseCase struct {
	store  domrepo.SnapshotStore
	layout models.BoardLayout
	cache  icache.BytesCache
	state  StateReporter
}

// NewBoardUseCase builds the read side. cache may be nil to render every call.
func NewBoardUseCase(store domrepo.SnapshotStore, layout models.BoardLayout, cache icache.BytesCache, state StateReporter) *BoardUseCase {
	return &BoardUseCase{store: store, layout: layout, cache: cache, state: state}
}

// boardKey holds the latest rendered board, prefixed with its 8-byte cycle.
const boardKey = "board:latest"

// BoardJSON returns the full board encoded as JSON. The encoding is cached
// under a single key and reused while the snapshot cycle is unchanged.
func (uc *BoardUseCase) BoardJSON(ctx context.Context) ([]byte, error) {
	snap := uc.store.Latest()
	var cycle uint64
	if snap != nil {
		cycle = snap.Cycle
	}

	if uc.cache != nil {
		if b, ok, err := uc.cache.GetBytes(ctx, boardKey); err == nil && ok &&
			len(b) >= 8 && binary.BigEndian.Uint64(b[:8]) == cycle {
			return b[8:], nil
		}
	}

	b, err := json.Marshal(uc.layout.Render(snap))
	if err != nil {
		return nil, fmt.Errorf("encode board: %w", err)
	}
	if uc.cache != nil {
		buf := make([]byte, 8+len(b))
		binary.BigEndian.PutUint64(buf, cycle)
		copy(buf[8:], b)
		// Best effort; a miss only costs a re-render.
		_ = uc.cache.SetBytes(ctx, boardKey, buf, 10*time.Minute)
	}
	return b, nil
}

// Instrument returns the row of one instrument, or a single cell when tf is set.
func (uc *BoardUseCase) Instrument(name, tf string) (interface{}, error) {
	if !uc.layout.HasInstrument(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, name)
	}
	if tf != "" && !uc.layout.HasTimeframe(tf) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTimeframe, tf)
	}

	one := uc.layout
	one.Instruments = []string{name}
	row, _ := one.Render(uc.store.Latest()).Row(name)
	if tf == "" {
		return row, nil
	}
	cell, _ := row.Cell(tf)
	return cell, nil
}

// Health is the /healthz payload.
type Health struct {
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
	Cycle     uint64 `json:"cycle"`
	State     string `json:"state"`
}

func (uc *BoardUseCase) Health() Health {
	h := Health{Status: "ok", UpdatedAt: util.Placeholder, State: StateIdle.String()}
	if snap := uc.store.Latest(); snap != nil {
		h.Cycle = snap.Cycle
		h.UpdatedAt = util.FormatDisplay(snap.UpdatedAt, uc.layout.Location)
	}
	if uc.state != nil {
		h.State = uc.state.State().String()
	}
	return h
}

// Layout returns the configured board layout.
func (uc *BoardUseCase) Layout() models.BoardLayout { return uc.layout }
