// ironshield
// (C) 2024, Deutsche Telekom IT GmbH
//
// Deutsche Telekom IT GmbH and all other contributors /
// copyright owners license this file to you under the Apache
// License, Version 2.0 (the "License"); you may not use this
// file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/caas-team/ironshield/internal/logger"
	"github.com/caas-team/ironshield/pkg/timeline"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ErrUnsupportedDriver is returned for database drivers without a schema
var ErrUnsupportedDriver = errors.New("unsupported database driver")

var schemas = map[string]string{
	DriverSQLite: `
	CREATE TABLE IF NOT EXISTS uptime_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site_id TEXT NOT NULL,
		status TEXT NOT NULL,
		observed_at INTEGER NOT NULL,
		response_time_ms INTEGER,
		uptime_percentage REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_uptime_samples_site_observed
		ON uptime_samples(site_id, observed_at DESC);
	`,
	DriverPostgres: `
	CREATE TABLE IF NOT EXISTS uptime_samples (
		id BIGSERIAL PRIMARY KEY,
		site_id TEXT NOT NULL,
		status TEXT NOT NULL,
		observed_at BIGINT NOT NULL,
		response_time_ms BIGINT,
		uptime_percentage DOUBLE PRECISION NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_uptime_samples_site_observed
		ON uptime_samples(site_id, observed_at DESC);
	`,
}

// ArchiveConfig configures the sql archive
type ArchiveConfig struct {
	// Driver is sqlite3 or postgres
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`
	// DSN is the data source name passed to the driver
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
}

// Enabled reports whether an archive is configured
func (c ArchiveConfig) Enabled() bool {
	return c.DSN != ""
}

// Record is an archived observation of a target
type Record struct {
	SiteID         string                  `json:"site_id"`
	Status         timeline.Classification `json:"status"`
	ObservedAt     time.Time               `json:"observed_at"`
	ResponseTimeMs *int64                  `json:"response_time_ms,omitempty"`
	Availability   float64                 `json:"uptime_percentage"`
}

var _ Forwarder = (*SQLArchive)(nil)

// SQLArchive appends resolved snapshots to the uptime_samples table
type SQLArchive struct {
	db     *sql.DB
	driver string
}

// NewSQLArchive opens the database and creates the schema if necessary
func NewSQLArchive(ctx context.Context, cfg ArchiveConfig) (*SQLArchive, error) {
	schema, ok := schemas[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// a single connection keeps in-memory databases alive
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to connect to database: %w", err), db.Close())
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create schema: %w", err), db.Close())
	}

	logger.FromContext(ctx).Info("Opened uptime archive", "driver", cfg.Driver)
	return &SQLArchive{db: db, driver: cfg.Driver}, nil
}

// Forward inserts all resolved snapshots in a single transaction
func (a *SQLArchive) Forward(ctx context.Context, snapshots []timeline.Snapshot) (err error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO uptime_samples (site_id, status, observed_at, response_time_ms, uptime_percentage) VALUES (%s)",
		a.placeholders(5),
	))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // closed with the transaction

	for _, s := range snapshots {
		if !s.Status.Resolved() {
			continue
		}
		if _, err = stmt.ExecContext(ctx, s.TargetID, string(s.Status), s.Timestamp, s.ResponseTimeMs, s.Availability); err != nil {
			return fmt.Errorf("failed to archive snapshot of %s: %w", s.TargetID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// History returns the newest archived records of the target, newest first
func (a *SQLArchive) History(ctx context.Context, siteID string, limit int) ([]Record, error) {
	query := fmt.Sprintf(
		"SELECT site_id, status, observed_at, response_time_ms, uptime_percentage FROM uptime_samples WHERE site_id = %s ORDER BY observed_at DESC, id DESC LIMIT %s",
		a.placeholder(1), a.placeholder(2),
	)
	rows, err := a.db.QueryContext(ctx, query, siteID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read only

	var records []Record
	for rows.Next() {
		var (
			r          Record
			status     string
			observedAt int64
			latency    sql.NullInt64
		)
		if err := rows.Scan(&r.SiteID, &status, &observedAt, &latency, &r.Availability); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		r.Status = timeline.Classification(status)
		r.ObservedAt = time.Unix(observedAt, 0).UTC()
		if latency.Valid {
			ms := latency.Int64
			r.ResponseTimeMs = &ms
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the database
func (a *SQLArchive) Close() error {
	return a.db.Close()
}

// placeholder returns the bind parameter n of the driver
func (a *SQLArchive) placeholder(n int) string {
	if a.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (a *SQLArchive) placeholders(count int) string {
	p := make([]string, count)
	for i := range p {
		p[i] = a.placeholder(i + 1)
	}
	return strings.Join(p, ", ")
}
