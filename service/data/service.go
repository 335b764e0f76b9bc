package data

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
)

// orphanAfter is how long a camera agent may miss heartbeats before its
// camera is considered orphaned.
const orphanAfter = 5 * time.Minute

// New returns the data service selected by the database configuration.
func New(cfgsvc config.IService) (IService, error) {
	params := cfgsvc.GetDatabase()
	switch params.Driver {
	case "", DriverFiles:
		return NewFilesDB(cfgsvc)
	case DriverSQLite, DriverPostgres:
		return NewSQL(params.Driver, params.DSN, cfgsvc.GetCameras())
	default:
		return nil, xerrors.Errorf("unknown database driver %q", params.Driver)
	}
}

func isOrphaned(camera model.Camera, now int64) bool {
	if camera.Excluded {
		return false
	}
	return camera.AgentID == "" || now-camera.LastHeartBeat > int64(orphanAfter.Seconds())
}

type errorEntity struct {
	ID         string                 `json:"id"`
	Timestamp  int64                  `json:"timestamp"`
	Processor  string                 `json:"processor"`
	Inner      string                 `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func toErrorEntity(id string, err error) errorEntity {
	var custom model.CustomError
	if !xerrors.As(err, &custom) {
		custom = model.CustomError{
			Processor:  "N/A",
			Inner:      err,
			Message:    err.Error(),
			StackTrace: "N/A",
		}
	}

	inner := ""
	if custom.Inner != nil {
		inner = custom.Inner.Error()
	}
	return errorEntity{
		ID:         id,
		Timestamp:  time.Now().Unix(),
		Processor:  custom.Processor,
		Inner:      inner,
		Message:    custom.Message,
		StackTrace: custom.StackTrace,
		Misc:       custom.Misc,
	}
}
