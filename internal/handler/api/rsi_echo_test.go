package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"RSIBoard/internal/domain/models"
	"RSIBoard/internal/repository"
	"RSIBoard/internal/usecase"
	xhttp "RSIBoard/pkg/http"
	xlogger "RSIBoard/pkg/logger"
	"RSIBoard/pkg/util"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	instruments = []models.Instrument{{Name: "Сбербанк", ID: "SBER"}, {Name: "Газпром", ID: "GAZP"}}
	timeframes  = []string{"5m", "1h", "1d"}
)

func newTestEcho(t *testing.T) (*echo.Echo, *repository.MemorySnapshotStore) {
	t.Helper()
	store := repository.NewMemorySnapshotStore(instruments, timeframes)
	layout := models.BoardLayout{
		Instruments: []string{"Сбербанк", "Газпром"},
		Timeframes:  timeframes,
		Location:    util.FixedZone(3 * time.Hour),
	}
	uc := usecase.NewBoardUseCase(store, layout, nil, nil)
	e := echo.New()
	NewRSIEchoHandler(xlogger.Nop(), uc).RegisterRoutes(e)
	return e, store
}

func serve(e *echo.Echo, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func publish(store *repository.MemorySnapshotStore) {
	s := models.NewSnapshot(instruments, timeframes)
	s.Cycle = 1
	s.UpdatedAt = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	s.Values["Сбербанк"]["1h"] = models.RSIResult{
		Value: decimal.NullDecimal{Decimal: decimal.RequireFromString("61.237"), Valid: true},
		AsOf:  time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC),
	}
	store.Publish(s)
}

func TestBoard_BeforeFirstCycle(t *testing.T) {
	e, _ := newTestEcho(t)
	rec := serve(e, "/api/rsi")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]map[string]models.Cell
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	for name, row := range got {
		require.Len(t, row, 3, name)
		for tf, cell := range row {
			assert.Equal(t, "-", cell.RSI, name+"/"+tf)
			assert.Equal(t, "-", cell.Time, name+"/"+tf)
		}
	}
}

func TestBoard_OrderAndValues(t *testing.T) {
	e, store := newTestEcho(t)
	publish(store)

	rec := serve(e, "/api/rsi")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Less(t, strings.Index(body, "Сбербанк"), strings.Index(body, "Газпром"))
	assert.Contains(t, body, `"1h":{"RSI":61.24,"time":"2024-05-06 11:00:00"}`)
	assert.Contains(t, body, `"5m":{"RSI":"-","time":"-"}`)
}

func TestInstrument_Row(t *testing.T) {
	e, store := newTestEcho(t)
	publish(store)

	rec := serve(e, "/api/rsi/"+url.PathEscape("Сбербанк"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status int                    `json:"status"`
		Data   map[string]models.Cell `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 61.24, resp.Data["1h"].RSI)
	assert.Equal(t, "-", resp.Data["1d"].RSI)
}

func TestInstrument_Cell(t *testing.T) {
	e, store := newTestEcho(t)
	publish(store)

	rec := serve(e, "/api/rsi/"+url.PathEscape("Сбербанк")+"?tf=1h")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":{"RSI":61.24,"time":"2024-05-06 11:00:00"}}`, rec.Body.String())
}

func TestInstrument_Errors(t *testing.T) {
	e, _ := newTestEcho(t)

	rec := serve(e, "/api/rsi/Tesla")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp xhttp.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Status)

	rec = serve(e, "/api/rsi/"+url.PathEscape("Газпром")+"?tf=3m")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_BAD_REQUEST")

	rec = serve(e, "/api/rsi/"+url.PathEscape("Газпром")+"?tf=0123456789")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_MAX")
}

func TestHealth(t *testing.T) {
	e, store := newTestEcho(t)
	publish(store)

	rec := serve(e, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","updated_at":"2024-05-06 12:00:00","cycle":1,"state":"idle"}`, rec.Body.String())
}
