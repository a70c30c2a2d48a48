package dataload

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"StockPredictor/internal/domain/models"
	"StockPredictor/internal/domain/repository"
	xhttp "StockPredictor/pkg/http"
	"StockPredictor/pkg/logger"
)

var (
	ErrTooFewPoints  = errors.New("too few data points")
	ErrParse         = errors.New("error parsing data")
	ErrUnknownSource = errors.New("unknown data source")
	ErrNotConfigured = errors.New("data source not configured")
)

const (
	DefaultMinPoints        = 50
	DefaultSimulatedLatency = 1500 * time.Millisecond
	DefaultStoreLimit       = 90
)

//go:embed data/sample.json
var sampleJSON []byte

var samplePoints = mustParseSample()

func mustParseSample() []models.HistoricalPoint {
	pts, err := ParseJSON(sampleJSON)
	if err != nil {
		panic(fmt.Sprintf("dataload: bundled sample: %v", err))
	}
	return pts
}

// Sample returns a copy of the bundled sample series.
func Sample() []models.HistoricalPoint {
	out := make([]models.HistoricalPoint, len(samplePoints))
	copy(out, samplePoints)
	return out
}

// Request selects a source and carries its inputs.
type Request struct {
	Source string
	Symbol string
	Limit  int
	Points []models.HistoricalPoint
	File   []byte
	Format string
}

// Loader resolves a Request into a series of at least MinPoints points.
type Loader struct {
	minPoints int
	latency   time.Duration
	remoteURL string
	client    *xhttp.Client
	store     repository.SeriesStore
	log       *logger.Logger
}

type Option func(*Loader)

func WithMinPoints(n int) Option {
	return func(l *Loader) { l.minPoints = n }
}

func WithSimulatedLatency(d time.Duration) Option {
	return func(l *Loader) { l.latency = d }
}

// WithRemote sets the dataset URL; "{symbol}" in the URL is replaced per request.
func WithRemote(rawURL string, client *xhttp.Client) Option {
	return func(l *Loader) {
		l.remoteURL = rawURL
		l.client = client
	}
}

func WithStore(s repository.SeriesStore) Option {
	return func(l *Loader) { l.store = s }
}

func WithLogger(log *logger.Logger) Option {
	return func(l *Loader) { l.log = log }
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		minPoints: DefaultMinPoints,
		latency:   DefaultSimulatedLatency,
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the series for req and enforces the minimum length.
func (l *Loader) Load(ctx context.Context, req Request) ([]models.HistoricalPoint, error) {
	pts, err := l.load(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(pts) < l.minPoints {
		return nil, fmt.Errorf("%w: file must contain at least %d data points, got %d", ErrTooFewPoints, l.minPoints, len(pts))
	}
	l.log.Debug("series loaded",
		logger.String("source", req.Source),
		logger.String("symbol", req.Symbol),
		logger.Int("points", len(pts)),
	)
	return pts, nil
}

func (l *Loader) load(ctx context.Context, req Request) ([]models.HistoricalPoint, error) {
	switch req.Source {
	case "", models.SourceSample:
		return Sample(), nil
	case models.SourceSimulated:
		return l.simulated(ctx)
	case models.SourceInline:
		out := make([]models.HistoricalPoint, len(req.Points))
		copy(out, req.Points)
		return out, nil
	case models.SourceFile:
		return Parse(req.Format, req.File)
	case models.SourceRemote:
		return l.remote(ctx, req.Symbol)
	case models.SourceStore:
		return l.fromStore(ctx, req.Symbol, req.Limit)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, req.Source)
	}
}

func (l *Loader) simulated(ctx context.Context) ([]models.HistoricalPoint, error) {
	t := time.NewTimer(l.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return Sample(), nil
	}
}

func (l *Loader) remote(ctx context.Context, symbol string) ([]models.HistoricalPoint, error) {
	if l.remoteURL == "" || l.client == nil {
		return nil, fmt.Errorf("%w: remote", ErrNotConfigured)
	}
	target := strings.ReplaceAll(l.remoteURL, "{symbol}", url.PathEscape(symbol))
	var body []byte
	err := l.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     target,
		Headers: map[string]string{"Accept": "application/json"},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("fetch remote series: %w", err)
	}
	return ParseJSON(body)
}

func (l *Loader) fromStore(ctx context.Context, symbol string, limit int) ([]models.HistoricalPoint, error) {
	if l.store == nil {
		return nil, fmt.Errorf("%w: store", ErrNotConfigured)
	}
	if limit <= 0 {
		limit = DefaultStoreLimit
	}
	pts, err := l.store.GetLatestN(ctx, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query series store: %w", err)
	}
	return pts, nil
}
