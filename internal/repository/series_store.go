package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"StockPredictor/internal/domain/models"
	domrepo "StockPredictor/internal/domain/repository"
	pkgch "StockPredictor/pkg/clickhouse"
	applogger "StockPredictor/pkg/logger"
)

// saveChunkSize bounds rows per multi-row INSERT.
const saveChunkSize = 2000

// CHSeriesStore implements SeriesStore backed by ClickHouse.
type CHSeriesStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHSeriesStore creates a series store on the client's database.
func NewCHSeriesStore(ch *pkgch.Client, l *applogger.Logger) *CHSeriesStore {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHSeriesStore{
		ch:    ch,
		db:    ch.DB(),
		table: ch.Table(pkgch.SeriesTable),
		l:     l,
	}
}

var _ domrepo.SeriesStore = (*CHSeriesStore)(nil)

func (s *CHSeriesStore) Init(ctx context.Context) error {
	if err := s.ch.InitSchema(ctx, pkgch.SeriesSchema(s.ch.Database())); err != nil {
		return fmt.Errorf("init series schema: %w", err)
	}
	return nil
}

// GetLatestN returns up to n most recent points for symbol in ascending date order.
func (s *CHSeriesStore) GetLatestN(ctx context.Context, symbol string, n int) ([]models.HistoricalPoint, error) {
	if n <= 0 {
		return nil, nil
	}
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT date, price, volume, open, high, low, close
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY date DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		s.l.Error("clickhouse get_latest query error",
			applogger.String("symbol", symbol),
			applogger.Int("n", n),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get latest series: %w", err)
	}
	defer rows.Close()

	out := make([]models.HistoricalPoint, 0, n)
	for rows.Next() {
		var (
			p                      models.HistoricalPoint
			open, high, low, cls sql.NullFloat64
		)
		if err := rows.Scan(&p.Date, &p.Price, &p.Volume, &open, &high, &low, &cls); err != nil {
			s.l.Error("clickhouse get_latest scan error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Open, p.High, p.Low, p.Close = nullable(open), nullable(high), nullable(low), nullable(cls)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	// reverse DESC to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	s.l.Debug("clickhouse get_latest ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("elapsed_ms", time.Since(start)),
	)
	return out, nil
}

// Save upserts points for symbol. Rows with a zero date are skipped.
func (s *CHSeriesStore) Save(ctx context.Context, symbol string, points []models.HistoricalPoint) error {
	if len(points) == 0 {
		return nil
	}
	for start := 0; start < len(points); start += saveChunkSize {
		end := min(start+saveChunkSize, len(points))
		q, args := buildInsert(s.table, symbol, points[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("save series chunk %d: %w", start/saveChunkSize, err)
		}
	}
	return nil
}

func (s *CHSeriesStore) Health(ctx context.Context) error {
	return s.ch.Ping(ctx)
}

func (s *CHSeriesStore) Close() error {
	return nil // pool owned by pkg/clickhouse
}

func buildInsert(table, symbol string, points []models.HistoricalPoint) (string, []interface{}) {
	values := make([]string, 0, len(points))
	args := make([]interface{}, 0, len(points)*8)
	for _, p := range points {
		if p.Date.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, symbol, p.Date.UTC(), p.Price, p.Volume,
			nullArg(p.Open), nullArg(p.High), nullArg(p.Low), nullArg(p.Close))
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, date, price, volume, open, high, low, close) VALUES %s",
		table, strings.Join(values, ","))
	return q, args
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float64(v.Float64)
}

func nullArg(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
