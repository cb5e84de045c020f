package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/dreschagin/vrops-selfmon/pkg/config"
	_ "github.com/lib/pq"
)

// Schema создает таблицы архива, если их еще нет
const Schema = `
CREATE TABLE IF NOT EXISTS selfmon_runs (
	run_id            TEXT PRIMARY KEY,
	host              TEXT NOT NULL,
	status            TEXT NOT NULL,
	failure_stage     TEXT,
	failure_kind      TEXT,
	error             TEXT,
	objects_collected INTEGER NOT NULL DEFAULT 0,
	objects_skipped   INTEGER NOT NULL DEFAULT 0,
	series_collected  INTEGER NOT NULL DEFAULT 0,
	started_at        TIMESTAMPTZ NOT NULL,
	finished_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS selfmon_samples (
	node         TEXT NOT NULL,
	metric_key   TEXT NOT NULL,
	ts_ms        BIGINT NOT NULL,
	value        DOUBLE PRECISION NOT NULL,
	short_id     TEXT NOT NULL,
	service      TEXT NOT NULL,
	kpi          BOOLEAN NOT NULL DEFAULT FALSE,
	run_id       TEXT NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (node, metric_key, ts_ms)
);

CREATE TABLE IF NOT EXISTS selfmon_telemetry (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	metric_type  TEXT NOT NULL,
	value        DOUBLE PRECISION NOT NULL,
	unit         TEXT NOT NULL,
	labels       JSONB,
	collected_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_selfmon_telemetry_collected_at ON selfmon_telemetry (collected_at);
`

const (
	insertRunQuery = `
		INSERT INTO selfmon_runs (run_id, host, status, failure_stage, failure_kind, error,
			objects_collected, objects_skipped, series_collected, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO NOTHING
	`

	// Перекрывающиеся окна разных запусков дают те же метки времени; остается последнее значение.
	upsertSampleQuery = `
		INSERT INTO selfmon_samples (node, metric_key, ts_ms, value, short_id, service, kpi, run_id, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (node, metric_key, ts_ms) DO UPDATE
		SET value = EXCLUDED.value,
			short_id = EXCLUDED.short_id,
			run_id = EXCLUDED.run_id,
			collected_at = EXCLUDED.collected_at
	`

	insertTelemetryQuery = `
		INSERT INTO selfmon_telemetry (id, run_id, metric_type, value, unit, labels, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
)

// SampleRepository реализует repository.SampleRepository для PostgreSQL
type SampleRepository struct {
	db *sql.DB
}

// NewSampleRepository создает новый PostgreSQL repository
func NewSampleRepository(db *sql.DB) *SampleRepository {
	return &SampleRepository{
		db: db,
	}
}

// Open открывает пул соединений и проверяет доступность БД
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// EnsureSchema создает таблицы архива
func (r *SampleRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun сохраняет итог запуска и все его ряды одной транзакцией
func (r *SampleRepository) SaveRun(ctx context.Context, summary *entity.RunSummary, result *entity.CollectionResult) error {
	if summary == nil {
		return fmt.Errorf("run summary is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	run := ToRunModel(summary)
	_, err = tx.ExecContext(ctx, insertRunQuery,
		run.RunID,
		run.Host,
		run.Status,
		run.FailureStage,
		run.FailureKind,
		run.Error,
		run.ObjectsCollected,
		run.ObjectsSkipped,
		run.SeriesCollected,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	samples := ToSampleModels(summary.RunID, result, summary.FinishedAt)
	if len(samples) > 0 {
		stmt, err := tx.PrepareContext(ctx, upsertSampleQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, sample := range samples {
			_, err = stmt.ExecContext(ctx,
				sample.Node,
				sample.MetricKey,
				sample.TimestampMS,
				sample.Value,
				sample.ShortID,
				sample.Service,
				sample.KPI,
				sample.RunID,
				sample.CollectedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert sample: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SaveTelemetry сохраняет точки телеметрии сборщика одной транзакцией
func (r *SampleRepository) SaveTelemetry(ctx context.Context, metrics []*entity.Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, insertTelemetryQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, metric := range metrics {
		model, err := ToTelemetryModel(metric)
		if err != nil {
			return fmt.Errorf("failed to convert metric to DB model: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			model.ID,
			model.RunID,
			model.MetricType,
			model.Value,
			model.Unit,
			model.Labels,
			model.CollectedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert telemetry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindSeries находит значения метрики узла в окне, по возрастанию времени
func (r *SampleRepository) FindSeries(
	ctx context.Context,
	node valueobject.NodeName,
	key string,
	window valueobject.TimeRange,
) (valueobject.TimeSeries, error) {
	query := `
		SELECT ts_ms, value
		FROM selfmon_samples
		WHERE node = $1 AND metric_key = $2 AND ts_ms BETWEEN $3 AND $4
		ORDER BY ts_ms ASC
	`

	rows, err := r.db.QueryContext(ctx, query,
		node.String(),
		key,
		window.Start().UnixMilli(),
		window.End().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	series := make(valueobject.TimeSeries, 0)
	for rows.Next() {
		sample, err := ScanSampleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample row: %w", err)
		}
		series = append(series, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return series, nil
}

// DeleteOlderThan удаляет значения и телеметрию старше cutoff
func (r *SampleRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64

	result, err := r.db.ExecContext(ctx, `DELETE FROM selfmon_samples WHERE ts_ms < $1`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old samples: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		total += n
	}

	result, err = r.db.ExecContext(ctx, `DELETE FROM selfmon_telemetry WHERE collected_at < $1`, cutoff.UTC())
	if err != nil {
		return total, fmt.Errorf("failed to delete old telemetry: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		total += n
	}

	return total, nil
}
