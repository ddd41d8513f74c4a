package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/aquasight/plant-visualizer/core"
	"github.com/aquasight/plant-visualizer/frameloop"
	"github.com/aquasight/plant-visualizer/internal/api"
	"github.com/aquasight/plant-visualizer/internal/logging"
	"github.com/aquasight/plant-visualizer/internal/observability"
	"github.com/aquasight/plant-visualizer/internal/simfeed"
	"github.com/aquasight/plant-visualizer/internal/state"
	"github.com/aquasight/plant-visualizer/scene"
)

func main() {
	scenePath := flag.String("scene", "configs/plant_scene.json", "Path to the plant scene manifest")
	listenAddr := flag.String("listen", ":8080", "HTTP address the API server listens on")
	fps := flag.Int("fps", 60, "Target visual frame rate")
	maxDelta := flag.Duration("max-delta", 100*time.Millisecond, "Upper bound on a single frame delta")
	simOnStart := flag.Bool("sim", false, "Start the synthetic data feed at boot")
	simInterval := flag.Duration("sim-interval", 2*time.Second, "Interval between synthetic data pushes")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}

	collector, err := observability.NewVizCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}

	sc, summary := loadScene(ctx, log, *scenePath)

	plant := state.NewPlantState(log, state.WithUpdateRecorder(collector))

	viz := core.New(sc, plant, log,
		core.WithFrameRecorder(collector),
		core.WithCamera(core.NewCamera(
			scene.Vec3{X: 14, Y: 10, Z: 14},
			scene.Vec3{Y: 2},
		)),
	)
	collector.SetSceneCounts(sc.Len(), viz.Index().Len())
	log.Info(ctx, "scene loaded",
		logging.String("path", *scenePath),
		logging.Int("nodes", sc.Len()),
		logging.Int("meshes", summary.Meshes),
		logging.Int("components", viz.Index().Len()))

	feed := simfeed.NewFeeder(plant, *simInterval, log)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *simOnStart {
		feed.Start(runCtx)
	}

	driver := frameloop.NewDriver(*fps, *maxDelta)
	driver.AddListener(viz.Advance)
	loopDone := driver.Start(runCtx)

	srv := &http.Server{
		Addr:    *listenAddr,
		Handler: api.NewServer(plant, viz, feed, log, collector).Handler(),
	}
	go func() {
		log.Info(ctx, "serving plant API", logging.String("addr", *listenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "API server exited", logging.String("error", err.Error()))
			stop()
		}
	}()

	<-runCtx.Done()
	log.Info(ctx, "shutting down")

	feed.Stop()
	<-loopDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	observability.ShutdownWithTimeout(shutdownCtx, shutdownTracing, log)
}

func loadScene(ctx context.Context, log logging.Logger, path string) (*scene.Scene, *scene.Summary) {
	f, err := os.Open(path)
	if err != nil {
		log.Error(ctx, "failed to open scene manifest", logging.String("path", path), logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer f.Close()

	sc, summary, err := scene.LoadManifest(f)
	if err != nil {
		log.Error(ctx, "failed to load scene manifest", logging.String("path", path), logging.String("error", err.Error()))
		os.Exit(1)
	}
	return sc, summary
}
