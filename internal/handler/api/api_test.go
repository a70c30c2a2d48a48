package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPredictor/internal/domain/models"
	"StockPredictor/internal/repository"
	"StockPredictor/internal/service/ratelimit"
	"StockPredictor/internal/services/dataload"
	"StockPredictor/internal/usecase"
	"StockPredictor/pkg/cache"
	"StockPredictor/pkg/metrics"
)

type stubPredictor struct {
	delay time.Duration
}

func (s stubPredictor) Predict(ctx context.Context, series []models.HistoricalPoint, symbol string) (*models.PredictionResult, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	cur := series[len(series)-1].Price
	return &models.PredictionResult{
		Symbol:         symbol,
		CurrentPrice:   cur,
		PredictedPrice: cur + 1,
		Confidence:     90,
		Trend:          models.TrendUp,
		Recommendation: models.StrongBuy,
	}, nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newEcho(t *testing.T, rl *ratelimit.Limiter, delay time.Duration) *echo.Echo {
	t.Helper()
	uc := usecase.NewPredictionUseCase(stubPredictor{delay: delay}, dataload.NewLoader(), usecase.NewRunner(2, time.Second), nil, metrics.Nop{}, nil)
	store := repository.NewCacheJobStore(cache.NewMemoryCache(), time.Minute)
	jobs := usecase.NewJobManager(uc, store, nil, metrics.Nop{}, nil)
	t.Cleanup(func() { _ = jobs.Close(context.Background()) })

	e := echo.New()
	Routes{
		NewPredictionEchoHandler(nil, uc, jobs, rl),
		NewHealthHandler(map[string]Check{
			"store": func(context.Context) error { return errors.New("down") },
		}),
	}.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestPredict_OK(t *testing.T) {
	e := newEcho(t, nil, 0)
	rec, env := do(e, http.MethodPost, "/api/predict", `{"symbol":"aapl"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res models.PredictionResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, models.StrongBuy, res.Recommendation)
}

func TestPredict_BadRequest(t *testing.T) {
	e := newEcho(t, nil, 0)

	rec, env := do(e, http.MethodPost, "/api/predict", `{"symbol":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_REQUIRED")

	rec, env = do(e, http.MethodPost, "/api/predict", `{"symbol":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), usecase.ErrSymbolRequired.Error())

	rec, _ = do(e, http.MethodPost, "/api/predict", `{"symbol":"X","source":"ftp"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(e, http.MethodPost, "/api/predict", `{"symbol":"X","source":"inline","points":[{"date":"2024-01-01","price":1,"volume":1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "at least 50")

	rec, _ = do(e, http.MethodPost, "/api/predict", `{"symbol":"X","source":"store"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredict_RateLimited(t *testing.T) {
	e := newEcho(t, ratelimit.New(0.001, 1, 0), 0)
	rec, _ := do(e, http.MethodPost, "/api/predict", `{"symbol":"AAPL"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env := do(e, http.MethodPost, "/api/predict", `{"symbol":"AAPL"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_RATE_LIMITED")
}

func TestSamples(t *testing.T) {
	e := newEcho(t, nil, 0)
	rec, env := do(e, http.MethodGet, "/api/samples?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []models.HistoricalPoint `json:"rows"`
		Total int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Rows, 5)
	assert.Equal(t, int64(5), list.Total)
}

func csvBody(n int) string {
	var b strings.Builder
	b.WriteString("Date,Close,Volume\n")
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s,%.2f,%d\n", day.AddDate(0, 0, i).Format("2006-01-02"), 100+float64(i), 1000+i)
	}
	return b.String()
}

func upload(e *echo.Echo, name, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("symbol", "ibm")
	fw, _ := w.CreateFormFile("file", name)
	_, _ = fw.Write([]byte(content))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/predict/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestUpload(t *testing.T) {
	e := newEcho(t, nil, 0)

	rec := upload(e, "prices.csv", csvBody(60))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"symbol":"IBM"`)

	rec = upload(e, "prices.csv", csvBody(20))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(e, "prices.txt", csvBody(60))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobs(t *testing.T) {
	e := newEcho(t, nil, 10*time.Millisecond)

	rec, env := do(e, http.MethodPost, "/api/jobs", `{"symbol":"msft"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var job models.Job
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, models.JobPending, job.Status)

	assert.Eventually(t, func() bool {
		rec, env := do(e, http.MethodGet, "/api/jobs/"+job.ID, "")
		if rec.Code != http.StatusOK {
			return false
		}
		var got models.Job
		return json.Unmarshal(env.Data, &got) == nil && got.Status == models.JobSucceeded && got.Result != nil
	}, 2*time.Second, 10*time.Millisecond)

	rec, _ = do(e, http.MethodGet, "/api/jobs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamJob(t *testing.T) {
	e := newEcho(t, nil, 50*time.Millisecond)
	srv := httptest.NewServer(e)
	defer srv.Close()

	_, env := do(e, http.MethodPost, "/api/jobs", `{"symbol":"nvda"}`)
	var job models.Job
	require.NoError(t, json.Unmarshal(env.Data, &job))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/" + job.ID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var last models.Job
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var j models.Job
		if err := conn.ReadJSON(&j); err != nil {
			break
		}
		last = j
		if j.Status.Terminal() {
			break
		}
	}
	assert.Equal(t, models.JobSucceeded, last.Status)
	require.NotNil(t, last.Result)
	assert.Equal(t, "NVDA", last.Result.Symbol)
}

// forwardDispatcher hands queued jobs to another manager, standing in for
// a second replica consuming the shared Redis queue.
type forwardDispatcher struct {
	to *usecase.JobManager
}

func (d forwardDispatcher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	go func() { _ = d.to.Job().Handle(context.Background(), raw) }()
	return nil
}

func TestStreamJob_RunOnOtherReplica(t *testing.T) {
	uc := usecase.NewPredictionUseCase(stubPredictor{delay: 50 * time.Millisecond}, dataload.NewLoader(), usecase.NewRunner(2, time.Second), nil, metrics.Nop{}, nil)
	store := repository.NewCacheJobStore(cache.NewMemoryCache(), time.Minute)
	worker := usecase.NewJobManager(uc, store, nil, metrics.Nop{}, nil)
	front := usecase.NewJobManager(uc, store, forwardDispatcher{to: worker}, metrics.Nop{}, nil)
	t.Cleanup(func() {
		_ = worker.Close(context.Background())
		_ = front.Close(context.Background())
	})

	e := echo.New()
	NewPredictionEchoHandler(nil, uc, front, nil).WithStreamPoll(10 * time.Millisecond).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	job, err := front.Submit(context.Background(), usecase.PredictParams{Symbol: "amd"})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/" + job.ID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var last models.Job
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var j models.Job
		if err := conn.ReadJSON(&j); err != nil {
			break
		}
		last = j
		if j.Status.Terminal() {
			break
		}
	}
	assert.Equal(t, models.JobSucceeded, last.Status)
	require.NotNil(t, last.Result)
	assert.Equal(t, "AMD", last.Result.Symbol)
}

func TestHealth(t *testing.T) {
	e := newEcho(t, nil, 0)
	rec, _ := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(e, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, string(env.Data), "down")
}
