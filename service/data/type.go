package data

import "github.com/khaledhikmat/wildwatch-go/model"

// Drivers
const (
	DriverFiles    = "files"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type IService interface {
	RetrieveCameras() ([]model.Camera, error)
	RetrieveCameraByID(id string) (model.Camera, error)
	RetrieveOrphanedCameras(max int) ([]model.Camera, error)
	UpdateCameraExcluded(id string, excluded bool) error
	UpdateCameraAgentID(cameraID, agentID string) error
	UpdateCameraAgentHeartbeat(id string) error
	ResetCameraAgents() error

	NewAlertEvent(event model.AlertEvent) error
	NewAlertRecord(record model.AlertRecord) error
	RetrieveAlerts(limit int) ([]model.AlertRecord, error)

	NewError(err error) error
	NewAgentsManagerStats(stats model.AgentsManagerStats) error
	NewAgentStats(stats model.AgentStats) error
	NewFramerStats(stats model.FramerStats) error
	NewStreamerStats(stats model.StreamerStats) error
	NewAlerterStats(stats model.AlerterStats) error

	Finalize() error
}
