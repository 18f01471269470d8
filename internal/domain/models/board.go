package models

import (
	"bytes"
	"encoding/json"
	"time"

	"RSIBoard/pkg/util"
)

// Cell is the wire form of one RSIResult: {"RSI": 55.12 | "-", "time": "..." | "-"}.
type Cell struct {
	RSI  interface{} `json:"RSI"`
	Time string      `json:"time"`
}

// NewCell renders r, formatting AsOf in loc.
func NewCell(r RSIResult, loc *time.Location) Cell {
	if !r.Available() {
		return Cell{RSI: util.Placeholder, Time: util.Placeholder}
	}
	return Cell{
		RSI:  json.Number(r.Value.Decimal.StringFixed(2)),
		Time: util.FormatDisplay(r.AsOf, loc),
	}
}

type namedCell struct {
	Timeframe string
	Cell      Cell
}

// Row is one instrument's cells in timeframe order.
type Row struct {
	Name  string
	cells []namedCell
}

// Cell returns the cell for timeframe tf.
func (r Row) Cell(tf string) (Cell, bool) {
	for _, c := range r.cells {
		if c.Timeframe == tf {
			return c.Cell, true
		}
	}
	return Cell{}, false
}

// MarshalJSON writes {"5m": {...}, "15m": {...}} keeping timeframe order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKV(&buf, c.Timeframe, c.Cell); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Board is a rendered snapshot whose JSON keeps configured instrument and
// timeframe order.
type Board struct {
	Rows []Row
}

// RenderBoard renders every configured pair; pairs missing from s render as "-".
func RenderBoard(s *Snapshot, instruments, timeframes []string, loc *time.Location) Board {
	b := Board{Rows: make([]Row, 0, len(instruments))}
	for _, in := range instruments {
		row := Row{Name: in, cells: make([]namedCell, 0, len(timeframes))}
		for _, tf := range timeframes {
			row.cells = append(row.cells, namedCell{Timeframe: tf, Cell: NewCell(s.Get(in, tf), loc)})
		}
		b.Rows = append(b.Rows, row)
	}
	return b
}

// Row finds an instrument row by name.
func (b Board) Row(name string) (Row, bool) {
	for _, r := range b.Rows {
		if r.Name == name {
			return r, true
		}
	}
	return Row{}, false
}

func (b Board) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range b.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKV(&buf, r.Name, r); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKV(buf *bytes.Buffer, key string, v interface{}) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}

// BoardMessage is what snapshot publishers ship to Kafka and Redis.
type BoardMessage struct {
	Cycle     uint64 `json:"cycle"`
	UpdatedAt string `json:"updated_at"`
	Board     Board  `json:"board"`
}

// BoardLayout fixes the instrument and timeframe order and the display zone
// a snapshot is rendered with.
type BoardLayout struct {
	Instruments []string
	Timeframes  []string
	Location    *time.Location
}

// Render renders s with this layout.
func (l BoardLayout) Render(s *Snapshot) Board {
	return RenderBoard(s, l.Instruments, l.Timeframes, l.Location)
}

// Message wraps the rendered board with its cycle and update time.
func (l BoardLayout) Message(s *Snapshot) BoardMessage {
	msg := BoardMessage{UpdatedAt: util.Placeholder, Board: l.Render(s)}
	if s != nil {
		msg.Cycle = s.Cycle
		msg.UpdatedAt = util.FormatDisplay(s.UpdatedAt, l.Location)
	}
	return msg
}

// HasInstrument reports whether name is a configured instrument.
func (l BoardLayout) HasInstrument(name string) bool {
	for _, in := range l.Instruments {
		if in == name {
			return true
		}
	}
	return false
}

// HasTimeframe reports whether name is a configured timeframe.
func (l BoardLayout) HasTimeframe(name string) bool {
	for _, tf := range l.Timeframes {
		if tf == name {
			return true
		}
	}
	return false
}
