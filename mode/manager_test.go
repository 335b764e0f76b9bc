package mode

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/pipeline"
	"github.com/khaledhikmat/wildwatch-go/service/config"
	"github.com/khaledhikmat/wildwatch-go/service/data"
	"github.com/khaledhikmat/wildwatch-go/service/orphan"
)

func testServices(t *testing.T, maxAgents int, cameras ...model.Camera) pipeline.ServicesFactory {
	t.Helper()

	settings := config.DefaultSettings()
	settings.DataFolder = t.TempDir()
	settings.MaxAgents = maxAgents
	settings.Cameras = cameras

	cfgsvc, err := config.NewFromSettings(settings)
	if err != nil {
		t.Fatal(err)
	}
	datasvc, err := data.NewFilesDB(cfgsvc)
	if err != nil {
		t.Fatal(err)
	}

	return pipeline.ServicesFactory{
		CfgSvc:    cfgsvc,
		DataSvc:   datasvc,
		OrphanSvc: orphan.NewMemory(),
	}
}

func cameras(ids ...string) []model.Camera {
	out := make([]model.Camera, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Camera{ID: id, Name: id, FramerType: model.FramerRandom})
	}
	return out
}

func TestStartAgentsBoundedByMaxAgents(t *testing.T) {
	cams := cameras("cam-1", "cam-2", "cam-3")
	svcs := testServices(t, 2, cams...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newManager(ctx, svcs, nil)
	m.subscribed = true

	excluded := model.Camera{ID: "cam-x", Excluded: true}
	m.startAgents(append(cams, excluded))

	if len(m.running) != 2 {
		t.Fatalf("expected 2 running agents, got %d", len(m.running))
	}
	if _, ok := m.running["cam-x"]; ok {
		t.Error("excluded camera got an agent")
	}
	if m.stats.TotalUnaccommodated != 1 {
		t.Errorf("unaccommodated = %d, want 1", m.stats.TotalUnaccommodated)
	}
	if m.subscribed {
		t.Error("manager should unsubscribe while full")
	}

	// Starting the same camera twice is a no-op
	m.startAgents(cams[:1])
	if m.stats.TotalStartedAgents != 2 {
		t.Errorf("started = %d, want 2", m.stats.TotalStartedAgents)
	}
}

func TestAgentExitReleasesCamera(t *testing.T) {
	cams := cameras("cam-1")
	svcs := testServices(t, 4, cams...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without streamers the agent fails right away
	m := newManager(ctx, svcs, nil)
	m.startAgents(cams)

	var x agentExit
	select {
	case x = <-m.exitStream:
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not exit")
	}
	if x.Err == nil {
		t.Fatal("expected an agent error")
	}

	m.agentExited(x)
	if len(m.running) != 0 {
		t.Errorf("expected no running agents, got %d", len(m.running))
	}
	if m.stats.TotalStoppedAgents != 1 {
		t.Errorf("stopped = %d", m.stats.TotalStoppedAgents)
	}

	orphaned, err := svcs.DataSvc.RetrieveOrphanedCameras(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(orphaned) != 1 || orphaned[0].ID != "cam-1" {
		t.Errorf("camera should be orphaned again, got %v", orphaned)
	}

	if _, err := os.Stat(filepath.Join(svcs.CfgSvc.GetDataFolder(), "errors.json")); err != nil {
		t.Errorf("agent error not persisted: %v", err)
	}
}

func TestAgentExitIgnoresStaleAgent(t *testing.T) {
	svcs := testServices(t, 4)
	m := newManager(context.Background(), svcs, nil)

	cancelled := false
	m.running["cam-1"] = agent{ID: "new", CanxFn: func() { cancelled = true }}

	m.agentExited(agentExit{CameraID: "cam-1", AgentID: "old"})
	if _, ok := m.running["cam-1"]; !ok || cancelled {
		t.Error("exit of a replaced agent must not stop the current one")
	}
}

func TestStopExcluded(t *testing.T) {
	svcs := testServices(t, 4)
	m := newManager(context.Background(), svcs, nil)

	cancelled := map[string]bool{}
	for _, id := range []string{"cam-1", "cam-2", "cam-3"} {
		id := id
		m.running[id] = agent{ID: "a-" + id, CanxFn: func() { cancelled[id] = true }}
	}

	current := []model.Camera{
		{ID: "cam-1"},
		{ID: "cam-2", Excluded: true},
		// cam-3 was removed
	}

	stopped := m.stopExcluded(current)
	if len(stopped) != 2 {
		t.Fatalf("expected 2 stopped agents, got %v", stopped)
	}
	if !cancelled["cam-2"] || !cancelled["cam-3"] || cancelled["cam-1"] {
		t.Errorf("cancelled = %v", cancelled)
	}
	if _, ok := m.running["cam-1"]; !ok || len(m.running) != 1 {
		t.Errorf("running = %v", m.running)
	}
}

func TestPeriodicResubscribes(t *testing.T) {
	cams := cameras("cam-1", "cam-2")
	svcs := testServices(t, 2, cams...)
	m := newManager(context.Background(), svcs, nil)
	m.subscribed = false

	m.running["cam-1"] = agent{ID: "a1", CanxFn: func() {}}
	if err := svcs.DataSvc.UpdateCameraExcluded("cam-1", true); err != nil {
		t.Fatal(err)
	}

	m.periodic()

	if len(m.running) != 0 {
		t.Errorf("excluded camera agent still running")
	}
	if !m.subscribed {
		t.Error("manager should resubscribe when below max agents")
	}

	cam, err := svcs.DataSvc.RetrieveCameraByID("cam-1")
	if err != nil {
		t.Fatal(err)
	}
	if cam.AgentID != "" {
		t.Errorf("camera agent id = %q, want released", cam.AgentID)
	}
}

func TestSnapshotAverages(t *testing.T) {
	m := newManager(context.Background(), testServices(t, 4), nil)

	m.running["cam-1"] = agent{}
	m.running["cam-2"] = agent{}
	m.snapshot()
	delete(m.running, "cam-2")
	s := m.snapshot()

	if s.TotalRunningAgents != 1 {
		t.Errorf("running = %d", s.TotalRunningAgents)
	}
	if s.AvgRunningAgentsPerMin != 1.5 {
		t.Errorf("average = %v, want 1.5", s.AvgRunningAgentsPerMin)
	}
}

func TestMonitorPublishesOrphans(t *testing.T) {
	cams := cameras("cam-1", "cam-2")
	svcs := testServices(t, 4, cams...)
	if err := svcs.DataSvc.UpdateCameraAgentID("cam-2", "agent-2"); err != nil {
		t.Fatal(err)
	}

	ch, err := svcs.OrphanSvc.Subscribe()
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Monitor(ctx, svcs, nil, nil) }()

	select {
	case got := <-ch:
		if len(got) != 1 || got[0].ID != "cam-1" {
			t.Errorf("orphans = %v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no orphans published")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("monitor: %v", err)
	}
}
