package pipeline

import (
	"context"
	"time"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/wildwatch-go/detection"
	"github.com/khaledhikmat/wildwatch-go/dispatch"
	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
	"github.com/khaledhikmat/wildwatch-go/service/data"
	"github.com/khaledhikmat/wildwatch-go/service/inference"
	"github.com/khaledhikmat/wildwatch-go/service/orphan"
	"github.com/khaledhikmat/wildwatch-go/service/storage"
)

// reportTimeout bounds how long a stats or error report waits for the
// manager to drain it.
const reportTimeout = 5 * time.Second

type FrameData struct {
	Mat       gocv.Mat
	Timestamp time.Time
}

// AlertData carries one emitted event and the frame it was detected on.
// The receiver owns Mat and must close it.
type AlertData struct {
	Mat   gocv.Mat
	Event model.AlertEvent
}

type ServicesFactory struct {
	CfgSvc       config.IService
	DataSvc      data.IService
	OrphanSvc    orphan.IService
	StorageSvc   storage.IService
	InferenceSvc inference.IService
	Processor    *detection.Processor
	Handler      *dispatch.Handler
	Recordings   *Triggers
}

// Signature of streamer function
type Streamer func(canx context.Context, svcs ServicesFactory, camera model.Camera, errorStream chan interface{}, statsStream chan interface{}, alertStream chan AlertData) chan FrameData

// Signature of alerter function
type Alerter func(canx context.Context, svcs ServicesFactory, errorStream chan interface{}, statsStream chan interface{}) chan AlertData
