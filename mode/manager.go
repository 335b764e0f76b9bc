package mode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/pipeline"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
	"github.com/khaledhikmat/wildwatch-go/service/metrics"
)

type agent struct {
	ID     string
	Camera model.Camera
	CanxFn context.CancelFunc
}

type agentExit struct {
	CameraID string
	AgentID  string
	Err      error
}

type manager struct {
	canxCtx     context.Context
	svcs        pipeline.ServicesFactory
	streamers   []pipeline.Streamer
	errorStream chan interface{}
	statsStream chan interface{}
	alertStream chan pipeline.AlertData
	exitStream  chan agentExit

	running    map[string]agent
	subscribed bool
	startTime  time.Time
	samples    int64
	sampleSum  int64
	stats      model.AgentsManagerStats
}

func newManager(canxCtx context.Context, svcs pipeline.ServicesFactory, streamers []pipeline.Streamer) *manager {
	return &manager{
		canxCtx:     canxCtx,
		svcs:        svcs,
		streamers:   streamers,
		errorStream: make(chan interface{}, 100),
		statsStream: make(chan interface{}, 100),
		exitStream:  make(chan agentExit, 100),
		running:     map[string]agent{},
		startTime:   time.Now(),
	}
}

// The agents manager runs one agent per orphaned camera, up to max_agents,
// and stops agents whose camera was excluded.
func Manager(canxCtx context.Context, svcs pipeline.ServicesFactory, streamers []pipeline.Streamer, alerter pipeline.Alerter) error {
	// Agent ids left over from a previous run would keep every camera from
	// looking orphaned until its heartbeat goes stale.
	if err := svcs.DataSvc.ResetCameraAgents(); err != nil {
		return fmt.Errorf("error resetting camera agents: %w", err)
	}

	orphanStream, err := svcs.OrphanSvc.Subscribe()
	if err != nil {
		return err
	}

	m := newManager(canxCtx, svcs, streamers)
	m.subscribed = true

	// One alerter per manager keeps notification work off the capture path
	m.alertStream = alerter(canxCtx, svcs, m.errorStream, m.statsStream)

	cameras, err := svcs.DataSvc.RetrieveOrphanedCameras(svcs.CfgSvc.GetMaxAgents())
	if err != nil {
		procError(svcs.DataSvc, model.GenError("agents_manager",
			err,
			map[string]interface{}{},
			"error retrieving cameras"))
	}
	m.startAgents(cameras)

	periodic := time.NewTicker(time.Duration(svcs.CfgSvc.GetAgentsManagerPeriodicTimeout()) * time.Second)
	defer periodic.Stop()

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"agents manager context cancelled",
			)
			goto resume

		case orphanedCameras := <-orphanStream:
			m.startAgents(orphanedCameras)

		case <-periodic.C:
			m.periodic()

		case x := <-m.exitStream:
			m.agentExited(x)

		case s := <-m.statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-m.errorStream:
			procError(svcs.DataSvc, e)
		}
	}

	// Agents, streamers and the alerter report stats and errors as they exit
resume:
	lgr.Logger.Info(
		"agents manager is waiting for all go routines to exit",
	)

	return m.shutdown(time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second)
}

func (m *manager) startAgents(cameras []model.Camera) {
	maxAgents := m.svcs.CfgSvc.GetMaxAgents()
	unaccommodated := 0

	for _, camera := range cameras {
		if camera.Excluded {
			continue
		}
		if _, ok := m.running[camera.ID]; ok {
			continue
		}
		if len(m.running) >= maxAgents {
			unaccommodated++
			continue
		}
		m.startAgent(camera)
	}

	if unaccommodated > 0 {
		m.stats.TotalUnaccommodated += int64(unaccommodated)
		lgr.Logger.Warn(
			"agents manager could not accommodate these cameras",
			slog.Int("runningAgents", len(m.running)),
			slog.Int("maxAgents", maxAgents),
			slog.Int("unaccommodated", unaccommodated),
		)
	}

	// Stop taking orphans while full
	if len(m.running) >= maxAgents && m.subscribed {
		if err := m.svcs.OrphanSvc.Unsubscribe(); err != nil {
			procError(m.svcs.DataSvc, model.GenError("agents_manager",
				err,
				map[string]interface{}{},
				"error unsubscribing from orphan service"))
		} else {
			m.subscribed = false
		}
	}

	metrics.AgentsRunning.Set(float64(len(m.running)))
}

func (m *manager) startAgent(camera model.Camera) {
	agentID := uuid.NewString()

	// A child context lets us stop one agent without the others
	agentCanxCtx, agentCanxFn := context.WithCancel(m.canxCtx)
	m.running[camera.ID] = agent{
		ID:     agentID,
		Camera: camera,
		CanxFn: agentCanxFn,
	}
	m.stats.TotalStartedAgents++

	go func() {
		err := pipeline.Agent(agentCanxCtx, m.svcs, m.errorStream, m.statsStream, m.alertStream, camera, agentID, m.streamers)
		m.exitStream <- agentExit{CameraID: camera.ID, AgentID: agentID, Err: err}
	}()
}

func (m *manager) agentExited(x agentExit) {
	a, ok := m.running[x.CameraID]
	if !ok || a.ID != x.AgentID {
		return
	}

	a.CanxFn()
	delete(m.running, x.CameraID)
	m.stats.TotalStoppedAgents++
	metrics.AgentsRunning.Set(float64(len(m.running)))

	if x.Err == nil {
		return
	}

	procError(m.svcs.DataSvc, model.GenError("agents_manager",
		x.Err,
		map[string]interface{}{"camera": x.CameraID, "agent": x.AgentID},
		"agent exited for camera: %s",
		x.CameraID))

	// Let the monitor offer the camera again
	if m.canxCtx.Err() == nil {
		_ = m.svcs.DataSvc.UpdateCameraAgentID(x.CameraID, "")
	}
}

// stopExcluded cancels agents whose camera is now excluded or gone and
// returns their camera ids.
func (m *manager) stopExcluded(cameras []model.Camera) []string {
	current := make(map[string]model.Camera, len(cameras))
	for _, c := range cameras {
		current[c.ID] = c
	}

	var stopped []string
	for id, a := range m.running {
		c, ok := current[id]
		if ok && !c.Excluded {
			continue
		}

		lgr.Logger.Info(
			"stopping agent of excluded camera",
			slog.String("cameraID", id),
			slog.String("agentID", a.ID),
		)
		a.CanxFn()
		delete(m.running, id)
		m.stats.TotalStoppedAgents++
		stopped = append(stopped, id)
	}
	return stopped
}

func (m *manager) periodic() {
	cameras, err := m.svcs.DataSvc.RetrieveCameras()
	if err != nil {
		procError(m.svcs.DataSvc, model.GenError("agents_manager",
			err,
			map[string]interface{}{},
			"error retrieving cameras from the data service"))
	} else {
		for _, id := range m.stopExcluded(cameras) {
			if err := m.svcs.DataSvc.UpdateCameraAgentID(id, ""); err != nil {
				procError(m.svcs.DataSvc, model.GenError("agents_manager",
					err,
					map[string]interface{}{"camera": id},
					"error releasing camera"))
			}
		}
	}

	if len(m.running) < m.svcs.CfgSvc.GetMaxAgents() && !m.subscribed {
		if _, err := m.svcs.OrphanSvc.Subscribe(); err != nil {
			procError(m.svcs.DataSvc, model.GenError("agents_manager",
				err,
				map[string]interface{}{},
				"error subscribing to orphan service"))
		} else {
			m.subscribed = true
		}
	}

	metrics.AgentsRunning.Set(float64(len(m.running)))
	procStats(m.svcs.DataSvc, m.snapshot())
}

func (m *manager) snapshot() model.AgentsManagerStats {
	m.samples++
	m.sampleSum += int64(len(m.running))

	s := m.stats
	s.TotalRunningAgents = int64(len(m.running))
	s.TotalRunningUptime = int64(time.Since(m.startTime).Seconds())
	s.AvgRunningAgentsPerMin = float64(m.sampleSum) / float64(m.samples)
	s.Timestamp = time.Now().Unix()
	return s
}

// shutdown keeps draining reports for the grace period, then releases every
// camera so the next run can take them over immediately.
func (m *manager) shutdown(grace time.Duration) error {
	for _, a := range m.running {
		a.CanxFn()
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				"agents manager shutdown waiting period expired. Exiting now",
				slog.Duration("period", grace),
			)

			metrics.AgentsRunning.Set(0)
			procStats(m.svcs.DataSvc, m.snapshot())
			return m.svcs.DataSvc.ResetCameraAgents()

		case x := <-m.exitStream:
			if a, ok := m.running[x.CameraID]; ok && a.ID == x.AgentID {
				delete(m.running, x.CameraID)
				m.stats.TotalStoppedAgents++
			}

		case s := <-m.statsStream:
			procStats(m.svcs.DataSvc, s)

		case e := <-m.errorStream:
			procError(m.svcs.DataSvc, e)
		}
	}
}
