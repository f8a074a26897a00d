package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/terrasiaga/coordination/internal/cerr"
	"github.com/terrasiaga/coordination/internal/events"
	"github.com/terrasiaga/coordination/internal/models"
)

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

	s := &SQLiteDB{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS locations (
			id TEXT PRIMARY KEY,
			name TEXT,
			address TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL
		);

		CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			reporter_id TEXT,
			disaster_type TEXT NOT NULL,
			location_id TEXT,
			estimated_severity INTEGER NOT NULL,
			casualties INTEGER,
			injuries INTEGER,
			missing INTEGER,
			affected INTEGER,
			media_count INTEGER,
			required_skills TEXT,
			impact_radius_m REAL,
			status TEXT NOT NULL,
			credibility REAL,
			validator_id TEXT,
			validation_notes TEXT,
			validated_at DATETIME,
			submitted_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS disasters (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			severity INTEGER NOT NULL,
			priority TEXT NOT NULL,
			status TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			location_id TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			impact_radius_m REAL,
			affected INTEGER
		);

		CREATE TABLE IF NOT EXISTS disaster_reports (
			disaster_id TEXT NOT NULL,
			report_id TEXT NOT NULL,
			PRIMARY KEY (disaster_id, report_id)
		);

		CREATE TABLE IF NOT EXISTS resources (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			location_id TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL
		);

		CREATE TABLE IF NOT EXISTS allocations (
			id TEXT PRIMARY KEY,
			resource_id TEXT NOT NULL,
			disaster_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			status TEXT NOT NULL,
			allocator_id TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (resource_id) REFERENCES resources(id)
		);

		CREATE TABLE IF NOT EXISTS centers (
			id TEXT PRIMARY KEY,
			name TEXT,
			location_id TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			capacity INTEGER NOT NULL,
			occupancy INTEGER NOT NULL,
			closed INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS volunteers (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			skills TEXT,
			available INTEGER NOT NULL,
			location_id TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			specialization TEXT,
			experience_yrs INTEGER
		);

		CREATE TABLE IF NOT EXISTS assignments (
			id TEXT PRIMARY KEY,
			volunteer_id TEXT NOT NULL,
			report_id TEXT NOT NULL,
			status TEXT NOT NULL,
			assigned_at DATETIME NOT NULL,
			en_route_at DATETIME,
			arrived_at DATETIME,
			completed_at DATETIME,
			cancelled_at DATETIME
		);

		CREATE TABLE IF NOT EXISTS event_journal (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			occurred_at DATETIME NOT NULL,
			payload TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
		CREATE INDEX IF NOT EXISTS idx_disasters_status ON disasters(status);
		CREATE INDEX IF NOT EXISTS idx_allocations_resource ON allocations(resource_id);
		CREATE INDEX IF NOT EXISTS idx_journal_occurred ON event_journal(occurred_at);
		CREATE INDEX IF NOT EXISTS idx_journal_type ON event_journal(type);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) SaveLocation(ctx context.Context, l *models.Location) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, address, latitude, longitude)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, address=excluded.address,
			latitude=excluded.latitude, longitude=excluded.longitude`,
		l.ID, l.Name, l.Address, l.Latitude, l.Longitude)
	return err
}

func (s *SQLiteDB) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	var l models.Location
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, address, latitude, longitude FROM locations WHERE id = ?`, id).
		Scan(&l.ID, &l.Name, &l.Address, &l.Latitude, &l.Longitude)
	if err == sql.ErrNoRows {
		return nil, cerr.NotFound("location", id)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SQLiteDB) SaveReport(ctx context.Context, r *models.Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, reporter_id, disaster_type, location_id, estimated_severity,
			casualties, injuries, missing, affected, media_count, required_skills,
			impact_radius_m, status, credibility, validator_id, validation_notes,
			validated_at, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status,
			credibility=excluded.credibility, validator_id=excluded.validator_id,
			validation_notes=excluded.validation_notes, validated_at=excluded.validated_at`,
		r.ID, r.ReporterID, string(r.DisasterType), r.LocationID, r.EstimatedSeverity,
		r.Casualties, r.Injuries, r.Missing, r.Affected, r.MediaCount,
		strings.Join(r.RequiredSkills, ","), r.ImpactRadiusM, string(r.Status),
		r.Credibility, r.ValidatorID, r.ValidationNotes, r.ValidatedAt, r.SubmittedAt)
	return err
}

func (s *SQLiteDB) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var (
		r         models.Report
		dtype     string
		status    string
		skillsCSV string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, reporter_id, disaster_type, location_id, estimated_severity,
			casualties, injuries, missing, affected, media_count, required_skills,
			impact_radius_m, status, credibility, validator_id, validation_notes,
			validated_at, submitted_at
		FROM reports WHERE id = ?`, id).
		Scan(&r.ID, &r.ReporterID, &dtype, &r.LocationID, &r.EstimatedSeverity,
			&r.Casualties, &r.Injuries, &r.Missing, &r.Affected, &r.MediaCount,
			&skillsCSV, &r.ImpactRadiusM, &status, &r.Credibility, &r.ValidatorID,
			&r.ValidationNotes, &r.ValidatedAt, &r.SubmittedAt)
	if err == sql.ErrNoRows {
		return nil, cerr.NotFound("report", id)
	}
	if err != nil {
		return nil, err
	}
	r.DisasterType = models.DisasterType(dtype)
	r.Status = models.ReportStatus(status)
	if skillsCSV != "" {
		r.RequiredSkills = strings.Split(skillsCSV, ",")
	}
	return &r, nil
}

func (s *SQLiteDB) SaveDisaster(ctx context.Context, d *models.Disaster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO disasters (id, type, severity, priority, status, start_time,
			end_time, location_id, latitude, longitude, impact_radius_m, affected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET severity=excluded.severity,
			priority=excluded.priority, status=excluded.status,
			end_time=excluded.end_time, impact_radius_m=excluded.impact_radius_m,
			affected=excluded.affected`,
		d.ID, string(d.Type), d.Severity, string(d.Priority), string(d.Status),
		d.StartTime, d.EndTime, d.LocationID, d.Latitude, d.Longitude,
		d.ImpactRadiusM, d.Affected); err != nil {
		return err
	}

	for _, reportID := range d.ReportIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO disaster_reports (disaster_id, report_id) VALUES (?, ?)`,
			d.ID, reportID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteDB) GetDisaster(ctx context.Context, id string) (*models.Disaster, error) {
	var (
		d        models.Disaster
		dtype    string
		priority string
		status   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, severity, priority, status, start_time, end_time,
			location_id, latitude, longitude, impact_radius_m, affected
		FROM disasters WHERE id = ?`, id).
		Scan(&d.ID, &dtype, &d.Severity, &priority, &status, &d.StartTime,
			&d.EndTime, &d.LocationID, &d.Latitude, &d.Longitude,
			&d.ImpactRadiusM, &d.Affected)
	if err == sql.ErrNoRows {
		return nil, cerr.NotFound("disaster", id)
	}
	if err != nil {
		return nil, err
	}
	d.Type = models.DisasterType(dtype)
	d.Priority = models.Priority(priority)
	d.Status = models.DisasterStatus(status)

	rows, err := s.db.QueryContext(ctx,
		`SELECT report_id FROM disaster_reports WHERE disaster_id = ? ORDER BY report_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var reportID string
		if err := rows.Scan(&reportID); err != nil {
			return nil, err
		}
		d.ReportIDs = append(d.ReportIDs, reportID)
	}
	return &d, rows.Err()
}

func (s *SQLiteDB) SaveResource(ctx context.Context, r *models.EmergencyResource) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, category, quantity, location_id, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET quantity=excluded.quantity`,
		r.ID, r.Category, r.Quantity, r.LocationID, r.Latitude, r.Longitude)
	return err
}

func (s *SQLiteDB) SaveAllocation(ctx context.Context, a *models.ResourceAllocation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO allocations (id, resource_id, disaster_id, quantity, status,
			allocator_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status, updated_at=excluded.updated_at`,
		a.ID, a.ResourceID, a.DisasterID, a.Quantity, string(a.Status),
		a.AllocatorID, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *SQLiteDB) SaveCenter(ctx context.Context, c *models.EvacuationCenter) error {
	closed := 0
	if c.Closed {
		closed = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO centers (id, name, location_id, latitude, longitude, capacity, occupancy, closed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET occupancy=excluded.occupancy, closed=excluded.closed`,
		c.ID, c.Name, c.LocationID, c.Latitude, c.Longitude, c.Capacity, c.Occupancy, closed)
	return err
}

func (s *SQLiteDB) SaveVolunteer(ctx context.Context, v *models.Volunteer) error {
	available := 0
	if v.Available {
		available = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO volunteers (id, user_id, skills, available, location_id,
			latitude, longitude, specialization, experience_yrs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET skills=excluded.skills,
			available=excluded.available, latitude=excluded.latitude,
			longitude=excluded.longitude`,
		v.ID, v.UserID, strings.Join(v.Skills, ","), available, v.LocationID,
		v.Latitude, v.Longitude, v.Specialization, v.ExperienceYrs)
	return err
}

func (s *SQLiteDB) SaveAssignment(ctx context.Context, a *models.VolunteerAssignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (id, volunteer_id, report_id, status, assigned_at,
			en_route_at, arrived_at, completed_at, cancelled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status,
			en_route_at=excluded.en_route_at, arrived_at=excluded.arrived_at,
			completed_at=excluded.completed_at, cancelled_at=excluded.cancelled_at`,
		a.ID, a.VolunteerID, a.ReportID, string(a.Status), a.AssignedAt,
		a.EnRouteAt, a.ArrivedAt, a.CompletedAt, a.CancelledAt)
	return err
}

func (s *SQLiteDB) AppendEvent(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO event_journal (id, type, occurred_at, payload)
		VALUES (?, ?, ?, ?)`,
		ev.ID, string(ev.Type), ev.OccurredAt, string(payload))
	return err
}

func (s *SQLiteDB) ListEvents(ctx context.Context, f EventFilter) ([]events.Event, error) {
	query := `SELECT payload FROM event_journal`
	var conds []string
	var args []any
	if f.Type != nil {
		conds = append(conds, "type = ?")
		args = append(args, string(*f.Type))
	}
	if f.Since != nil {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, *f.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at DESC"
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev events.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

var _ EntityStore = (*SQLiteDB)(nil)
var _ EventJournal = (*SQLiteDB)(nil)
