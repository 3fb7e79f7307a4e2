package writer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"spotgate/internal/metrics"
	"spotgate/logger"
	"spotgate/models"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const klineTableDDL = `
CREATE TABLE IF NOT EXISTS kline_data (
	symbol VARCHAR(20),
	interval VARCHAR(10),
	start_time BIGINT,
	end_time BIGINT,
	open_price DOUBLE PRECISION,
	close_price DOUBLE PRECISION,
	high_price DOUBLE PRECISION,
	low_price DOUBLE PRECISION,
	base_asset_volume DOUBLE PRECISION,
	number_of_trades INT,
	is_kline_closed BOOLEAN,
	quote_asset_volume DOUBLE PRECISION,
	taker_buy_base_asset_volume DOUBLE PRECISION,
	taker_buy_quote_asset_volume DOUBLE PRECISION,
	PRIMARY KEY (symbol, interval, start_time)
)`

var klineColumns = []string{
	"symbol", "interval", "start_time", "end_time", "open_price", "close_price",
	"high_price", "low_price", "base_asset_volume", "number_of_trades",
	"is_kline_closed", "quote_asset_volume", "taker_buy_base_asset_volume",
	"taker_buy_quote_asset_volume",
}

type dialect struct {
	driver      string
	placeholder func(n int) string
}

var (
	postgresDialect = dialect{driver: "postgres", placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
	sqliteDialect   = dialect{driver: "sqlite3", placeholder: func(int) string { return "?" }}
)

// KlineStore upserts klines into the kline_data table keyed by
// (symbol, interval, start_time), so a candle's last update wins.
type KlineStore struct {
	db      *sql.DB
	dialect dialect
	upsert  string
	query   string
	log     *logger.Log
}

// NewPostgresKlineStore connects with a lib/pq DSN and ensures the schema.
func NewPostgresKlineStore(ctx context.Context, dsn string) (*KlineStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn not configured")
	}
	return openKlineStore(ctx, postgresDialect, dsn)
}

// NewSQLiteKlineStore opens (or creates) a sqlite database file.
func NewSQLiteKlineStore(ctx context.Context, path string) (*KlineStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path not configured")
	}
	return openKlineStore(ctx, sqliteDialect, path)
}

func openKlineStore(ctx context.Context, d dialect, dsn string) (*KlineStore, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.driver, err)
	}
	if d.driver == sqliteDialect.driver {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", d.driver, err)
	}

	s := &KlineStore{
		db:      db,
		dialect: d,
		upsert:  buildUpsert(d),
		query:   buildSelect(d),
		log:     logger.GetLogger(),
	}
	if d.driver == sqliteDialect.driver {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set sqlite journal mode: %w", err)
		}
	}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.log.WithComponent("kline_store").WithField("driver", d.driver).Info("kline store ready")
	return s, nil
}

func buildUpsert(d dialect) string {
	placeholders := make([]string, len(klineColumns))
	for i := range klineColumns {
		placeholders[i] = d.placeholder(i + 1)
	}
	updates := make([]string, 0, len(klineColumns)-3)
	for _, col := range klineColumns[3:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return fmt.Sprintf(
		"INSERT INTO kline_data (%s) VALUES (%s) ON CONFLICT (symbol, interval, start_time) DO UPDATE SET %s",
		strings.Join(klineColumns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
}

func buildSelect(d dialect) string {
	return fmt.Sprintf(
		"SELECT %s FROM kline_data WHERE symbol = %s AND interval = %s AND start_time = %s",
		strings.Join(klineColumns, ", "),
		d.placeholder(1), d.placeholder(2), d.placeholder(3),
	)
}

func (s *KlineStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, klineTableDDL); err != nil {
		return fmt.Errorf("failed to create kline_data table: %w", err)
	}
	return nil
}

func (s *KlineStore) SaveKline(ctx context.Context, rec models.KlineRecord) error {
	if rec.Symbol == "" || rec.Interval == "" {
		return fmt.Errorf("kline record missing symbol or interval")
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx, s.upsert,
		rec.Symbol, rec.Interval, rec.StartTime, rec.EndTime,
		rec.Open, rec.Close, rec.High, rec.Low,
		rec.BaseVolume, rec.Trades, rec.Closed, rec.QuoteVolume,
		rec.TakerBuyBaseVolume, rec.TakerBuyQuoteVolume,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert kline %s %s %d: %w", rec.Symbol, rec.Interval, rec.StartTime, err)
	}

	logger.IncrementKlinesArchived()
	fields := logger.Fields{
		"driver":   s.dialect.driver,
		"symbol":   rec.Symbol,
		"interval": rec.Interval,
	}
	logger.LogLatency(s.log.WithComponent("kline_store"), "save_kline", time.Since(start), fields)
	metrics.EmitMetric(s.log, "kline_store", "klines_archived", 1, "counter", fields)
	return nil
}

// Kline reads one archived row back.
func (s *KlineStore) Kline(ctx context.Context, symbol, interval string, startTime int64) (models.KlineRecord, error) {
	var rec models.KlineRecord
	err := s.db.QueryRowContext(ctx, s.query, symbol, interval, startTime).Scan(
		&rec.Symbol, &rec.Interval, &rec.StartTime, &rec.EndTime,
		&rec.Open, &rec.Close, &rec.High, &rec.Low,
		&rec.BaseVolume, &rec.Trades, &rec.Closed, &rec.QuoteVolume,
		&rec.TakerBuyBaseVolume, &rec.TakerBuyQuoteVolume,
	)
	if err != nil {
		return models.KlineRecord{}, fmt.Errorf("failed to read kline %s %s %d: %w", symbol, interval, startTime, err)
	}
	return rec, nil
}

func (s *KlineStore) Close() error {
	return s.db.Close()
}
