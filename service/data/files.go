package data

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
)

type filesDBService struct {
	CfgSvc config.IService
	mu     sync.Mutex
}

// NewFilesDB stores everything as JSON arrays in the data folder. The cameras
// file is seeded from the configured cameras when it does not exist.
func NewFilesDB(cfgsvc config.IService) (IService, error) {
	if err := os.MkdirAll(cfgsvc.GetDataFolder(), 0o755); err != nil {
		return nil, xerrors.Errorf("create data folder: %w", err)
	}

	svc := &filesDBService{
		CfgSvc: cfgsvc,
	}

	if _, err := os.Stat(cfgsvc.GetCamerasInputFile()); errors.Is(err, os.ErrNotExist) {
		if err := svc.writeCameras(cfgsvc.GetCameras()); err != nil {
			return nil, xerrors.Errorf("seed cameras: %w", err)
		}
	}

	return svc, nil
}

func (svc *filesDBService) RetrieveCameras() ([]model.Camera, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.readCameras()
}

func (svc *filesDBService) RetrieveCameraByID(id string) (model.Camera, error) {
	cameras, err := svc.RetrieveCameras()
	if err != nil {
		return model.Camera{}, err
	}

	for _, camera := range cameras {
		if camera.ID == id {
			return camera, nil
		}
	}

	return model.Camera{}, xerrors.Errorf("camera %s not found", id)
}

func (svc *filesDBService) RetrieveOrphanedCameras(max int) ([]model.Camera, error) {
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

func (svc *filesDBService) UpdateCameraExcluded(id string, excluded bool) error {
	return svc.updateCamera(id, func(c *model.Camera) {
		c.Excluded = excluded
	})
}

func (svc *filesDBService) UpdateCameraAgentID(cameraID, agentID string) error {
	return svc.updateCamera(cameraID, func(c *model.Camera) {
		now := time.Now().Unix()
		c.AgentID = agentID
		c.StartupTime = now
		c.LastHeartBeat = now
		c.Uptime = 0
	})
}

func (svc *filesDBService) UpdateCameraAgentHeartbeat(id string) error {
	return svc.updateCamera(id, func(c *model.Camera) {
		c.LastHeartBeat = time.Now().Unix()
		c.Uptime = c.LastHeartBeat - c.StartupTime
	})
}

func (svc *filesDBService) ResetCameraAgents() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	cameras, err := svc.readCameras()
	if err != nil {
		return err
	}
	for i := range cameras {
		cameras[i].AgentID = ""
		cameras[i].StartupTime = 0
		cameras[i].LastHeartBeat = 0
		cameras[i].Uptime = 0
	}
	return svc.writeCameras(cameras)
}

func (svc *filesDBService) NewAlertEvent(event model.AlertEvent) error {
	return svc.upsertAlert(model.AlertRecord{
		Event:     event,
		Status:    model.AlertStatusPending,
		CreatedAt: time.Now(),
	})
}

func (svc *filesDBService) NewAlertRecord(record model.AlertRecord) error {
	if record.Status == "" {
		record.Status = record.Result.Status()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	return svc.upsertAlert(record)
}

// RetrieveAlerts returns the most recent alerts first.
func (svc *filesDBService) RetrieveAlerts(limit int) ([]model.AlertRecord, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	records, err := retrieveEntities[model.AlertRecord](svc.path("alerts"))
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Event.Timestamp.After(records[j].Event.Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (svc *filesDBService) NewError(err error) error {
	if err == nil {
		return nil
	}
	return svc.newEntity(toErrorEntity(uuid.NewString(), err), "errors")
}

func (svc *filesDBService) NewAgentsManagerStats(stats model.AgentsManagerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "agents-manager-stats")
}

func (svc *filesDBService) NewAgentStats(stats model.AgentStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "agent-stats")
}

func (svc *filesDBService) NewFramerStats(stats model.FramerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "framer-stats")
}

func (svc *filesDBService) NewStreamerStats(stats model.StreamerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "streamer-stats")
}

func (svc *filesDBService) NewAlerterStats(stats model.AlerterStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "alerter-stats")
}

func (svc *filesDBService) Finalize() error {
	return nil
}

func (svc *filesDBService) path(name string) string {
	return filepath.Join(svc.CfgSvc.GetDataFolder(), name+".json")
}

func (svc *filesDBService) readCameras() ([]model.Camera, error) {
	data, err := os.ReadFile(svc.CfgSvc.GetCamerasInputFile())
	if err != nil {
		return nil, xerrors.Errorf("read cameras: %w", err)
	}

	cameras := []model.Camera{}
	if err := json.Unmarshal(data, &cameras); err != nil {
		return nil, xerrors.Errorf("unmarshal cameras: %w", err)
	}
	return cameras, nil
}

func (svc *filesDBService) writeCameras(cameras []model.Camera) error {
	if cameras == nil {
		cameras = []model.Camera{}
	}
	data, err := json.MarshalIndent(cameras, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(svc.CfgSvc.GetCamerasInputFile(), data)
}

func (svc *filesDBService) updateCamera(id string, update func(*model.Camera)) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	cameras, err := svc.readCameras()
	if err != nil {
		return err
	}

	found := false
	for i := range cameras {
		if cameras[i].ID == id {
			update(&cameras[i])
			found = true
			break
		}
	}
	if !found {
		return xerrors.Errorf("camera %s not found", id)
	}

	return svc.writeCameras(cameras)
}

func (svc *filesDBService) upsertAlert(record model.AlertRecord) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	output := svc.path("alerts")
	records, err := retrieveEntities[model.AlertRecord](output)
	if err != nil {
		return err
	}

	replaced := false
	for i := range records {
		if records[i].Event.ID == record.Event.ID {
			record.CreatedAt = records[i].CreatedAt
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}

	return writeEntities(output, records)
}

func (svc *filesDBService) newEntity(entity any, filename string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	output := svc.path(filename)
	entities, err := retrieveEntities[json.RawMessage](output)
	if err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return err
	}

	return writeEntities(output, append(entities, data))
}

func retrieveEntities[T any](filename string) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return entities, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, xerrors.Errorf("unmarshal %s: %w", filepath.Base(filename), err)
	}
	return entities, nil
}

func writeEntities[T any](filename string, entities []T) error {
	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filename, data)
}

// writeAtomic replaces the file through a temp file and rename.
func writeAtomic(filename string, data []byte) error {
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filename)
}
