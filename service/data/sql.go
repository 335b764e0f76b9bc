package data

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"golang.org/x/xerrors"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/khaledhikmat/wildwatch-go/model"
)

const cameraColumns = `id, name, location, source, framer_type, focal_length_px, excluded,
	agent_id, startup_time, last_heartbeat, uptime`

const alertColumns = `id, camera_id, tier, category, distance_cm, confidence, proximity,
	box_x, box_y, box_width, box_height, snapshot_url, event_time, status, result_json, created_at`

type sqlService struct {
	driver string
	db     *sql.DB
}

// NewSQL opens a SQLite or Postgres database, applies migrations and seeds
// the configured cameras. Cameras that already exist are left untouched.
func NewSQL(driver, dsn string, cameras []model.Camera) (IService, error) {
	if dsn == "" {
		return nil, xerrors.Errorf("%s dsn is required", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, xerrors.Errorf("open database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1) // SQLite is single-writer
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, xerrors.Errorf("ping database: %w", err)
	}

	svc := &sqlService{driver: driver, db: db}

	if driver == DriverSQLite {
		for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, xerrors.Errorf("execute %s: %w", pragma, err)
			}
		}
	}

	if err := runMigrations(db, svc.rebind); err != nil {
		db.Close()
		return nil, err
	}

	for _, camera := range cameras {
		_, err := db.Exec(svc.rebind(`INSERT INTO cameras (`+cameraColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, '', 0, 0, 0)
			ON CONFLICT (id) DO NOTHING`),
			camera.ID, camera.Name, camera.Location, camera.Source, camera.FramerType,
			camera.FocalLengthPx, camera.Excluded)
		if err != nil {
			db.Close()
			return nil, xerrors.Errorf("seed camera %s: %w", camera.ID, err)
		}
	}

	return svc, nil
}

// rebind converts ? placeholders to $n for Postgres.
func (svc *sqlService) rebind(query string) string {
	if svc.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (svc *sqlService) exec(query string, args ...any) error {
	_, err := svc.db.Exec(svc.rebind(query), args...)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCamera(row scanner) (model.Camera, error) {
	var c model.Camera
	err := row.Scan(&c.ID, &c.Name, &c.Location, &c.Source, &c.FramerType, &c.FocalLengthPx,
		&c.Excluded, &c.AgentID, &c.StartupTime, &c.LastHeartBeat, &c.Uptime)
	return c, err
}

func (svc *sqlService) RetrieveCameras() ([]model.Camera, error) {
	rows, err := svc.db.Query("SELECT " + cameraColumns + " FROM cameras ORDER BY id")
	if err != nil {
		return nil, xerrors.Errorf("query cameras: %w", err)
	}
	defer rows.Close()

	cameras := []model.Camera{}
	for rows.Next() {
		c, err := scanCamera(rows)
		if err != nil {
			return nil, xerrors.Errorf("scan camera: %w", err)
		}
		cameras = append(cameras, c)
	}
	return cameras, rows.Err()
}

func (svc *sqlService) RetrieveCameraByID(id string) (model.Camera, error) {
	row := svc.db.QueryRow(svc.rebind("SELECT "+cameraColumns+" FROM cameras WHERE id = ?"), id)
	c, err := scanCamera(row)
	if err != nil {
		return model.Camera{}, xerrors.Errorf("camera %s: %w", id, err)
	}
	return c, nil
}

func (svc *sqlService) RetrieveOrphanedCameras(max int) ([]model.Camera, error) {
	cameras, err := svc.RetrieveCameras()
	if err != nil {
		return nil, err
	}

	var result []model.Camera
	now := time.Now().Unix()
	for _, camera := range cameras {
		if len(result) >= max {
			break
		}
		if isOrphaned(camera, now) {
			result = append(result, camera)
		}
	}
	return result, nil
}

func (svc *sqlService) UpdateCameraExcluded(id string, excluded bool) error {
	return svc.updateCamera("UPDATE cameras SET excluded = ? WHERE id = ?", excluded, id)
}

func (svc *sqlService) UpdateCameraAgentID(cameraID, agentID string) error {
	now := time.Now().Unix()
	return svc.updateCamera(
		"UPDATE cameras SET agent_id = ?, startup_time = ?, last_heartbeat = ?, uptime = 0 WHERE id = ?",
		agentID, now, now, cameraID)
}

func (svc *sqlService) UpdateCameraAgentHeartbeat(id string) error {
	now := time.Now().Unix()
	return svc.updateCamera(
		"UPDATE cameras SET last_heartbeat = ?, uptime = ? - startup_time WHERE id = ?",
		now, now, id)
}

func (svc *sqlService) ResetCameraAgents() error {
	return svc.exec("UPDATE cameras SET agent_id = '', startup_time = 0, last_heartbeat = 0, uptime = 0")
}

func (svc *sqlService) updateCamera(query string, args ...any) error {
	res, err := svc.db.Exec(svc.rebind(query), args...)
	if err != nil {
		return xerrors.Errorf("update camera: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return xerrors.Errorf("camera %v not found", args[len(args)-1])
	}
	return nil
}

func (svc *sqlService) NewAlertEvent(event model.AlertEvent) error {
	return svc.upsertAlert(model.AlertRecord{
		Event:     event,
		Status:    model.AlertStatusPending,
		CreatedAt: time.Now(),
	})
}

func (svc *sqlService) NewAlertRecord(record model.AlertRecord) error {
	if record.Status == "" {
		record.Status = record.Result.Status()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	return svc.upsertAlert(record)
}

func (svc *sqlService) upsertAlert(record model.AlertRecord) error {
	result, err := json.Marshal(record.Result)
	if err != nil {
		return err
	}

	e := record.Event
	err = svc.exec(`INSERT INTO alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			snapshot_url = excluded.snapshot_url,
			status = excluded.status,
			result_json = excluded.result_json`,
		e.ID, e.CameraID, string(e.Tier), e.Category, e.DistanceCM, e.Confidence, e.Proximity,
		e.Box.X, e.Box.Y, e.Box.Width, e.Box.Height, e.SnapshotURL, e.Timestamp.UnixMilli(),
		record.Status, string(result), record.CreatedAt.UnixMilli())
	if err != nil {
		return xerrors.Errorf("upsert alert %s: %w", e.ID, err)
	}
	return nil
}

// RetrieveAlerts returns the most recent alerts first.
func (svc *sqlService) RetrieveAlerts(limit int) ([]model.AlertRecord, error) {
	query := "SELECT " + alertColumns + " FROM alerts ORDER BY event_time DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := svc.db.Query(svc.rebind(query), args...)
	if err != nil {
		return nil, xerrors.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	records := []model.AlertRecord{}
	for rows.Next() {
		var (
			r          model.AlertRecord
			tier       string
			eventTime  int64
			createdAt  int64
			resultJSON string
		)
		err := rows.Scan(&r.Event.ID, &r.Event.CameraID, &tier, &r.Event.Category,
			&r.Event.DistanceCM, &r.Event.Confidence, &r.Event.Proximity,
			&r.Event.Box.X, &r.Event.Box.Y, &r.Event.Box.Width, &r.Event.Box.Height,
			&r.Event.SnapshotURL, &eventTime, &r.Status, &resultJSON, &createdAt)
		if err != nil {
			return nil, xerrors.Errorf("scan alert: %w", err)
		}
		r.Event.Tier = model.ParseTier(tier)
		r.Event.Timestamp = time.UnixMilli(eventTime)
		r.CreatedAt = time.UnixMilli(createdAt)
		if err := json.Unmarshal([]byte(resultJSON), &r.Result); err != nil {
			return nil, xerrors.Errorf("unmarshal alert result %s: %w", r.Event.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (svc *sqlService) NewError(err error) error {
	if err == nil {
		return nil
	}

	e := toErrorEntity(uuid.NewString(), err)
	misc, merr := json.Marshal(e.Misc)
	if merr != nil {
		misc = []byte("{}")
	}
	return svc.exec(`INSERT INTO errors (id, processor, message, inner_error, stack_trace, misc_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Processor, e.Message, e.Inner, e.StackTrace, string(misc), time.Now().UnixMilli())
}

func (svc *sqlService) newStats(kind string, stats any) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	err = svc.exec("INSERT INTO stats (id, kind, payload, created_at) VALUES (?, ?, ?, ?)",
		uuid.NewString(), kind, string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert %s stats: %w", kind, err)
	}
	return nil
}

func (svc *sqlService) NewAgentsManagerStats(stats model.AgentsManagerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("agents-manager", stats)
}

func (svc *sqlService) NewAgentStats(stats model.AgentStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("agent", stats)
}

func (svc *sqlService) NewFramerStats(stats model.FramerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("framer", stats)
}

func (svc *sqlService) NewStreamerStats(stats model.StreamerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("streamer", stats)
}

func (svc *sqlService) NewAlerterStats(stats model.AlerterStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("alerter", stats)
}

func (svc *sqlService) Finalize() error {
	return svc.db.Close()
}
