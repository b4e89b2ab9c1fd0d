package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/mr1hm/go-relief-coordination/internal/models"
)

// SQLiteDB implements Store and LocalState on a local SQLite file. It stands
// in for the hosted backend and also backs the offline-mode flag and the
// selected-disaster id.
type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sos_alerts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			created_at DATETIME NOT NULL,
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			message TEXT,
			medical_info TEXT,
			responder_id TEXT,
			response_time DATETIME
		);

		CREATE TABLE IF NOT EXISTS resources (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			status TEXT NOT NULL,
			assigned_to TEXT
		);

		CREATE TABLE IF NOT EXISTS disasters (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			severity INTEGER NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			radius_km REAL NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			status TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS local_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sos_alerts_status ON sos_alerts(status);
		CREATE INDEX IF NOT EXISTS idx_disasters_status ON disasters(status);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) CreateAlert(ctx context.Context, a models.SOSAlert) (models.SOSAlert, error) {
	var responseTime any
	if a.ResponseTime != nil {
		responseTime = *a.ResponseTime
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sos_alerts
			(id, user_id, latitude, longitude, created_at, status, priority, message, medical_info, responder_id, response_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Location.Latitude, a.Location.Longitude, a.CreatedAt,
		a.Status, a.Priority, a.Message, a.MedicalInfo, a.ResponderID, responseTime,
	)
	if err != nil {
		return models.SOSAlert{}, fmt.Errorf("error inserting alert: %w", err)
	}
	return a, nil
}

func (s *SQLiteDB) UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus, responderID string) (models.SOSAlert, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sos_alerts SET status = ?, responder_id = ? WHERE id = ?`,
		status, responderID, id,
	)
	if err != nil {
		return models.SOSAlert{}, fmt.Errorf("error updating alert status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.SOSAlert{}, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return s.getAlert(ctx, id)
}

func (s *SQLiteDB) getAlert(ctx context.Context, id string) (models.SOSAlert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, latitude, longitude, created_at, status, priority,
		       message, medical_info, responder_id, response_time
		FROM sos_alerts WHERE id = ?`, id)

	var a models.SOSAlert
	var message, medicalInfo, responderID sql.NullString
	var responseTime sql.NullTime
	err := row.Scan(&a.ID, &a.UserID, &a.Location.Latitude, &a.Location.Longitude,
		&a.CreatedAt, &a.Status, &a.Priority, &message, &medicalInfo, &responderID, &responseTime)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SOSAlert{}, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.SOSAlert{}, fmt.Errorf("error scanning alert: %w", err)
	}

	a.Message = message.String
	a.MedicalInfo = medicalInfo.String
	a.ResponderID = responderID.String
	if responseTime.Valid {
		t := responseTime.Time
		a.ResponseTime = &t
	}
	return a, nil
}

func (s *SQLiteDB) UpsertResource(ctx context.Context, r models.Resource) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, type, name, quantity, unit, latitude, longitude, status, assigned_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type, name = excluded.name, quantity = excluded.quantity,
			unit = excluded.unit, latitude = excluded.latitude, longitude = excluded.longitude,
			status = excluded.status, assigned_to = excluded.assigned_to`,
		r.ID, r.Type, r.Name, r.Quantity, r.Unit,
		r.Location.Latitude, r.Location.Longitude, r.Status, r.AssignedTo,
	)
	if err != nil {
		return fmt.Errorf("error upserting resource: %w", err)
	}
	return nil
}

func (s *SQLiteDB) UpdateResourceStatus(ctx context.Context, id string, status models.ResourceStatus, assignedTo string) (models.Resource, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE resources SET status = ?, assigned_to = ? WHERE id = ?`,
		status, assignedTo, id,
	)
	if err != nil {
		return models.Resource{}, fmt.Errorf("error updating resource status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Resource{}, fmt.Errorf("resource %s: %w", id, ErrNotFound)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, quantity, unit, latitude, longitude, status, assigned_to
		FROM resources WHERE id = ?`, id)

	var r models.Resource
	var unit, assigned sql.NullString
	err = row.Scan(&r.ID, &r.Type, &r.Name, &r.Quantity, &unit,
		&r.Location.Latitude, &r.Location.Longitude, &r.Status, &assigned)
	if err != nil {
		return models.Resource{}, fmt.Errorf("error scanning resource: %w", err)
	}
	r.Unit = unit.String
	r.AssignedTo = assigned.String
	return r, nil
}

func (s *SQLiteDB) UpsertDisaster(ctx context.Context, d models.DisasterEvent) error {
	var endTime any
	if d.EndTime != nil {
		endTime = *d.EndTime
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO disasters (id, name, type, severity, latitude, longitude, radius_km, start_time, end_time, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, type = excluded.type, severity = excluded.severity,
			latitude = excluded.latitude, longitude = excluded.longitude,
			radius_km = excluded.radius_km, start_time = excluded.start_time,
			end_time = excluded.end_time, status = excluded.status`,
		d.ID, d.Name, d.Type, d.Severity, d.Center.Latitude, d.Center.Longitude,
		d.RadiusKm, d.StartTime, endTime, d.Status,
	)
	if err != nil {
		return fmt.Errorf("error upserting disaster: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ActiveDisasters(ctx context.Context) ([]models.DisasterEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, severity, latitude, longitude, radius_km, start_time, end_time, status
		FROM disasters WHERE status = ? ORDER BY start_time DESC`,
		models.DisasterStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying active disasters: %w", err)
	}
	defer rows.Close()

	var out []models.DisasterEvent
	for rows.Next() {
		var d models.DisasterEvent
		var endTime sql.NullTime
		err := rows.Scan(&d.ID, &d.Name, &d.Type, &d.Severity,
			&d.Center.Latitude, &d.Center.Longitude, &d.RadiusKm,
			&d.StartTime, &endTime, &d.Status)
		if err != nil {
			return nil, fmt.Errorf("error scanning disaster: %w", err)
		}
		if endTime.Valid {
			t := endTime.Time
			d.EndTime = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const (
	keyOfflineMode      = "offline_mode"
	keySelectedDisaster = "selected_disaster"
)

func (s *SQLiteDB) SetOfflineMode(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	return s.setState(ctx, keyOfflineMode, value)
}

func (s *SQLiteDB) OfflineMode(ctx context.Context) (bool, error) {
	v, err := s.getState(ctx, keyOfflineMode)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (s *SQLiteDB) SetSelectedDisaster(ctx context.Context, id string) error {
	return s.setState(ctx, keySelectedDisaster, id)
}

func (s *SQLiteDB) SelectedDisaster(ctx context.Context) (string, error) {
	return s.getState(ctx, keySelectedDisaster)
}

func (s *SQLiteDB) setState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("error writing local state %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteDB) getState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading local state %s: %w", key, err)
	}
	return value, nil
}

var _ Store = (*SQLiteDB)(nil)
var _ LocalState = (*SQLiteDB)(nil)
