package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/wildwatch-go/mode"
	"github.com/khaledhikmat/wildwatch-go/pipeline"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
	"github.com/khaledhikmat/wildwatch-go/service/metrics"
)

// WARNING: this has to be bigger than the mode processor shutdown time
const shutdownSlack = 3 * time.Second

var modeProcessors = map[string]mode.Processor{
	"manager": mode.Manager,
	"monitor": mode.Monitor,
}

var (
	runModes    []string
	runSimulate bool
	runNoRecord bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run camera agents",
	Long: `Run the agents manager and the orphan monitor.

The monitor finds cameras without a live agent and the manager starts one
agent per camera, up to max_agents. Each agent captures frames, runs the
object detector and hands emitted alerts to the alerter.

Examples:
  # Run with a settings file
  wildwatch run --config settings.yaml

  # Run without a model, replaying scripted detections
  wildwatch run --simulate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgSvc, err := loadConfig()
		if err != nil {
			return err
		}

		procs := make([]mode.Processor, 0, len(runModes))
		for _, name := range runModes {
			proc, ok := modeProcessors[strings.TrimSpace(name)]
			if !ok {
				return fmt.Errorf("invalid mode %q", name)
			}
			procs = append(procs, proc)
		}

		canxCtx, canxFn := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer canxFn()

		svcs, cl, err := newServices(canxCtx, cfgSvc, runSimulate)
		if err != nil {
			return err
		}
		defer cl.close()

		var metricsSrv *metrics.Server
		if addr := cfgSvc.GetMetricsAddress(); addr != "" {
			metricsSrv = metrics.NewServer(addr, map[string]metrics.Check{
				"data": func(context.Context) error {
					_, err := svcs.DataSvc.RetrieveCameras()
					return err
				},
			})
			go func() {
				if err := metricsSrv.Start(); err != nil {
					lgr.Logger.Error("metrics server stopped", slog.Any("error", err))
				}
			}()
		}

		streamers := []pipeline.Streamer{pipeline.Detector}
		if !runNoRecord {
			streamers = append(streamers, pipeline.Recorder)
		}

		err = runModeProcessors(canxCtx, canxFn, svcs, procs, streamers,
			time.Duration(cfgSvc.GetModeMaxShutdownTime())*time.Second+shutdownSlack)

		if metricsSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(ctx)
		}
		return err
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runModes, "modes", []string{"manager", "monitor"}, "mode processors to run")
	runCmd.Flags().BoolVar(&runSimulate, "simulate", false, "replay scripted detections instead of running the model")
	runCmd.Flags().BoolVar(&runNoRecord, "no-record", false, "do not record clips for alerts")
	rootCmd.AddCommand(runCmd)
}

// runModeProcessors runs the processors until the context is cancelled or
// one of them exits, then waits up to waitOnShutdown for the rest.
func runModeProcessors(canxCtx context.Context,
	canxFn context.CancelFunc,
	svcs pipeline.ServicesFactory,
	procs []mode.Processor,
	streamers []pipeline.Streamer,
	waitOnShutdown time.Duration) error {
	g, gctx := errgroup.WithContext(canxCtx)
	for _, proc := range procs {
		proc := proc
		g.Go(func() error {
			return proc(gctx, svcs, streamers, pipeline.QueuedAlerter)
		})
	}

	modeProcResult := make(chan error, 1)
	go func() {
		modeProcResult <- g.Wait()
	}()

	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"wildwatch context cancelled",
		)

	case err := <-modeProcResult:
		canxFn()
		if err != nil {
			return xerrors.Errorf("mode processor exited: %w", err)
		}
		return nil
	}

	lgr.Logger.Info(
		"wildwatch is waiting for all go routines to exit",
	)

	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	select {
	case <-timer.C:
		lgr.Logger.Info(
			"wildwatch shutdown waiting period expired. Exiting now",
			slog.Duration("period", waitOnShutdown),
		)
		return nil

	case err := <-modeProcResult:
		if err != nil {
			lgr.Logger.Info(
				"mode processor exited",
				slog.Any("error", err),
			)
		}
		return nil
	}
}
