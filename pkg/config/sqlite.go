package config

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"

	"github.com/xiaoha/batterywidget/pkg/types"
	"github.com/xiaoha/batterywidget/pkg/utils/ptr"
)

var _ Store = &SQLite{}

// SQLite is a Store backed by a single sqlite table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and migrates) the database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "failed to ping sqlite db")
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "failed to enable WAL mode")
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "schema migration failed")
	}

	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS instances (
		id INTEGER PRIMARY KEY,
		battery_id TEXT,
		region_code TEXT,
		base_url TEXT,
		refresh_interval_minutes INTEGER,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`)
	return err
}

func (s *SQLite) Load(id types.InstanceID) (Instance, error) {
	var (
		batteryID  sql.NullString
		regionCode sql.NullString
		baseURL    sql.NullString
		refresh    sql.NullInt64
	)

	err := s.db.QueryRow(
		`SELECT battery_id, region_code, base_url, refresh_interval_minutes FROM instances WHERE id = ?`,
		int(id),
	).Scan(&batteryID, &regionCode, &baseURL, &refresh)
	if err == sql.ErrNoRows {
		return (*RawInstance)(nil).Resolve(id), nil
	}
	if err != nil {
		return Instance{}, pkgerrors.Wrapf(err, "failed to load instance %d", id)
	}

	raw := &RawInstance{}
	if batteryID.Valid {
		raw.BatteryID = ptr.To(batteryID.String)
	}
	if regionCode.Valid {
		raw.RegionCode = ptr.To(regionCode.String)
	}
	if baseURL.Valid {
		raw.BaseURL = ptr.To(baseURL.String)
	}
	if refresh.Valid {
		raw.RefreshIntervalMinutes = ptr.To(int(refresh.Int64))
	}

	return raw.Resolve(id), nil
}

func (s *SQLite) Save(inst Instance) error {
	_, err := s.db.Exec(`
	INSERT INTO instances (id, battery_id, region_code, base_url, refresh_interval_minutes, updated_at)
	VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
		battery_id = excluded.battery_id,
		region_code = excluded.region_code,
		base_url = excluded.base_url,
		refresh_interval_minutes = excluded.refresh_interval_minutes,
		updated_at = excluded.updated_at`,
		int(inst.ID), inst.BatteryID, inst.RegionCode, inst.BaseURL, inst.RefreshIntervalMinutes,
	)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to save instance %d", inst.ID)
	}
	return nil
}

func (s *SQLite) Delete(id types.InstanceID) error {
	if _, err := s.db.Exec(`DELETE FROM instances WHERE id = ?`, int(id)); err != nil {
		return pkgerrors.Wrapf(err, "failed to delete instance %d", id)
	}
	return nil
}

func (s *SQLite) List() ([]types.InstanceID, error) {
	rows, err := s.db.Query(`SELECT id FROM instances ORDER BY id`)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list instances")
	}
	defer rows.Close()

	var ids []types.InstanceID
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to scan instance id")
		}
		ids = append(ids, types.InstanceID(id))
	}
	return ids, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
