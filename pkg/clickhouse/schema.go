package clickhouse

import "fmt"

// SeriesTable is the daily series table name inside the database.
const SeriesTable = "daily_series"

// SeriesSchema returns the DDL for the daily series store.
// ReplacingMergeTree keeps the latest ingest per (symbol, date).
func SeriesSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    symbol      LowCardinality(String),
    date        Date,
    price       Float64,
    volume      Int64,
    open        Nullable(Float64),
    high        Nullable(Float64),
    low         Nullable(Float64),
    close       Nullable(Float64),
    ingested_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY (symbol, date)`, database, SeriesTable),
	}
}
