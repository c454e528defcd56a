package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	applogger "FinFuse/pkg/logger"
)

// ClickHouseIntentStore implements IntentStore for ClickHouse. Every emitted
// intent becomes one audit row; the row timestamp is ingestion time.
type ClickHouseIntentStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseIntentStore creates the ClickHouse intent store.
func NewClickHouseIntentStore(db *sql.DB, table string) *ClickHouseIntentStore {
	return &ClickHouseIntentStore{db: db, table: table}
}

var _ drepo.IntentStore = (*ClickHouseIntentStore)(nil)

// SetLogger injects a structured logger.
func (s *ClickHouseIntentStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseIntentStore) Init(ctx context.Context) error {
	// Schema init in di; here just prove the table is reachable.
	return s.Health(ctx)
}

func intentRow(in *models.TradingIntent, at time.Time) (args []interface{}) {
	wire := in.Wire()
	rationale, _ := json.Marshal(wire.Rationale)
	return []interface{}{
		at,
		in.Ticker,
		string(in.Direction),
		in.Confidence,
		in.CompositeScore,
		string(rationale),
		wire.GatesTriggered,
		in.SizeAdjustment,
	}
}

func (s *ClickHouseIntentStore) Store(ctx context.Context, in *models.TradingIntent) error {
	q := fmt.Sprintf("INSERT INTO %s (at, ticker, direction, confidence, composite, rationale, gates, size_adj) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q, intentRow(in, time.Now().UTC())...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_intent error",
				applogger.String("table", s.table),
				applogger.String("ticker", in.Ticker),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store intent: %w", err)
	}
	return nil
}

func (s *ClickHouseIntentStore) StoreBatch(ctx context.Context, intents []*models.TradingIntent) error {
	if len(intents) == 0 {
		return nil
	}
	// Batch insert using VALUES multi-row to reduce round-trips.
	// Chunk size tuned to 2000 rows per batch.
	const chunkSize = 2000
	now := time.Now().UTC()
	for start := 0; start < len(intents); start += chunkSize {
		end := start + chunkSize
		if end > len(intents) {
			end = len(intents)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, in := range intents[start:end] {
			if in == nil || in.Ticker == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, intentRow(in, now)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (at, ticker, direction, confidence, composite, rationale, gates, size_adj) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse store_batch error",
					applogger.String("table", s.table),
					applogger.Int("rows", len(values)),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("store batch: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseIntentStore) Query(ctx context.Context, ticker string, from, to time.Time, limit int) ([]*models.StoredIntent, error) {
	q := fmt.Sprintf("SELECT at, ticker, direction, confidence, composite, rationale, gates, size_adj FROM %s WHERE ticker = ? AND at >= ? AND at <= ? ORDER BY at DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query_intents error",
				applogger.String("table", s.table),
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query intents: %w", err)
	}
	defer rows.Close()

	var out []*models.StoredIntent
	for rows.Next() {
		var (
			in        models.StoredIntent
			direction string
			gates     []string
		)
		if err := rows.Scan(&in.At, &in.Ticker, &direction, &in.Confidence, &in.Composite, &in.Rationale, &gates, &in.SizeAdj); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse query_intents scan error",
					applogger.String("table", s.table),
					applogger.String("ticker", ticker),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan intent: %w", err)
		}
		in.Direction = models.Direction(direction)
		in.Gates = gates
		out = append(out, &in)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query_intents rows error",
				applogger.String("table", s.table),
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseIntentStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseIntentStore) Close() error {
	return nil // Managed by pkg
}
