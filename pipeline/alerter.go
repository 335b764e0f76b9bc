package pipeline

import (
	"context"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
)

// handleTimeout bounds the handling of one alert, uploads and every channel
// included.
const handleTimeout = time.Minute

// QueuedAlerter drains the alert stream on its own goroutine so notification
// latency never reaches the capture path.
func QueuedAlerter(canx context.Context, svcs ServicesFactory, errorStream chan interface{}, statsStream chan interface{}) chan AlertData {
	in := make(chan AlertData, svcs.CfgSvc.GetAlertQueueSize())

	go func() {
		st := model.AlerterStats{Name: "alerter"}
		beginTime := time.Now()
		ticker := time.NewTicker(time.Duration(svcs.CfgSvc.GetAgentsManagerPeriodicTimeout()) * time.Second)
		defer ticker.Stop()

		emit := func() {
			st.Uptime = int64(time.Since(beginTime).Seconds())
			st.Timestamp = time.Now().Unix()
			report(statsStream, st)
		}
		defer emit()

		for {
			select {
			case <-canx.Done():
				lgr.Logger.Info("alerter context cancelled",
					slog.Int("pending", len(in)),
				)
				// Pending alerts are dropped with their frames
				for {
					select {
					case alert := <-in:
						alert.Mat.Close()
						st.Dropped++
					default:
						return
					}
				}

			case <-ticker.C:
				emit()

			case alert := <-in:
				if err := handleAlert(canx, svcs, alert); err != nil {
					st.Errors++
					report(errorStream, model.GenError("alerter",
						err,
						map[string]interface{}{"camera": alert.Event.CameraID, "event": alert.Event.ID},
						"error handling alert"))
					continue
				}
				st.Alerts++
			}
		}
	}()

	return in
}

func handleAlert(canx context.Context, svcs ServicesFactory, alert AlertData) error {
	defer alert.Mat.Close()

	var snapshot []byte
	if !alert.Mat.Empty() {
		annotate(&alert.Mat, alert.Event)
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, alert.Mat)
		if err != nil {
			lgr.Logger.Warn("snapshot encoding failed",
				slog.String("event", alert.Event.ID),
				slog.Any("error", err),
			)
		} else {
			snapshot = append([]byte(nil), buf.GetBytes()...)
			buf.Close()
		}
	}

	ctx, cancel := context.WithTimeout(canx, handleTimeout)
	defer cancel()

	_, err := svcs.Handler.Handle(ctx, alert.Event, snapshot)
	return err
}
