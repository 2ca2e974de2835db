// syncframed runs the multi-sensor synchronization pipeline end to end:
// one or more sensor sources feed a SyncEngine, whose emitted frames are
// fanned out to a set of sinks by a Dispatcher.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/clearpath-sim/syncframe/internal/dispatcher"
	"github.com/clearpath-sim/syncframe/internal/dispatcher/sinks"
	"github.com/clearpath-sim/syncframe/internal/ingestion"
	"github.com/clearpath-sim/syncframe/internal/ingestion/mock"
	"github.com/clearpath-sim/syncframe/internal/ingestion/serial"
	"github.com/clearpath-sim/syncframe/internal/livefeed"
	"github.com/clearpath-sim/syncframe/internal/sensor"
	"github.com/clearpath-sim/syncframe/internal/syncengine"
	"github.com/clearpath-sim/syncframe/internal/telemetry"
	"github.com/clearpath-sim/syncframe/pkg/utils"
)

var (
	httpPort  = flag.Int("http-port", 8094, "HTTP API and metrics port")
	logLevel  = flag.String("log-level", "info", "log level: debug, info, warn, error")
	logOutput = flag.String("log-output", "stdout", "log output: stdout or a file path")

	referenceSensor = flag.String("reference-sensor", "cam0", "reference sensor id")
	requiredSensors = flag.String("required-sensors", "cam0,lidar0,imu0", "comma-separated required sensor ids")
	imuSensor       = flag.String("imu-sensor", "imu0", "sensor id whose IMU payload drives window sizing; empty disables it")

	bufferMaxSize  = flag.Int("buffer-max-size", 1000, "per-sensor buffer capacity")
	bufferTimeoutS = flag.Float64("buffer-timeout-s", 1.0, "per-sensor buffer timeout in seconds (stored in the engine config; the engine runs no expiry sweep)")

	enableLiveFeed   = flag.Bool("livefeed", true, "enable the websocket live telemetry feed")
	liveFeedSigningKey = flag.String("livefeed-signing-key", "", "HMAC signing key for livefeed clearance tokens; empty disables token validation")

	serialPort = flag.String("serial-port", "", "serial port for a hardware sensor adapter; empty disables it")
	serialBaud = flag.Int("serial-baud", 115200, "serial adapter baud rate")
	serialSensorID = flag.String("serial-sensor-id", "serial0", "sensor id for the serial adapter")
)

func main() {
	flag.Parse()

	logger := utils.NewLogger(*logLevel, *logOutput)
	runID := uuid.New().String()
	logger.WithField("run_id", runID).Info("starting syncframed")

	cfg, err := buildEngineConfig()
	if err != nil {
		logger.WithError(err).Fatal("invalid sync engine configuration")
	}

	metrics := telemetry.New()

	engine, err := syncengine.New(cfg, logger, metrics)
	if err != nil {
		logger.WithError(err).Fatal("failed to construct sync engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan syncengine.SyncedFrame, 256)
	sinkList, feed := buildSinks(logger)
	disp := dispatcher.New(sinkList, frames, logger)
	disp.Spawn()

	// Every source delivers onto this single channel; exactly one
	// goroutine below drains it and drives Engine.Push, honoring the
	// engine's single-writer concurrency model.
	packets := make(chan sensor.Packet, 256)
	sources := buildSources(cfg, logger)
	for _, src := range sources {
		src.Listen(func(p sensor.Packet) { packets <- p })
	}
	pushDone := make(chan struct{})
	go func() {
		defer close(pushDone)
		for p := range packets {
			if frame, ok := engine.Push(p); ok {
				frames <- *frame
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/status", statusHandler(engine, disp))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	if feed != nil {
		mux.HandleFunc("/ws/telemetry", feed.HandleWebSocket)
	}

	server := &http.Server{Addr: fmt.Sprintf(":%d", *httpPort), Handler: mux}
	go func() {
		logger.WithField("port", *httpPort).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server error")
		}
	}()

	go pollSinkMetrics(ctx, disp, metrics)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	cancel()
	for _, src := range sources {
		src.Stop()
	}
	close(packets)
	<-pushDone
	close(frames)

	dispatchShutdownCtx, dispatchShutdownCancel := context.WithTimeout(context.Background(), dispatcher.ShutdownTimeout)
	defer dispatchShutdownCancel()
	if err := disp.Shutdown(dispatchShutdownCtx); err != nil {
		logger.WithError(err).Warn("dispatcher shutdown did not complete cleanly")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), dispatcher.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http server shutdown error")
	}

	logger.Info("syncframed stopped")
}

func buildEngineConfig() (syncengine.Config, error) {
	cfg := syncengine.Defaults()
	cfg.ReferenceSensorID = sensor.ID(*referenceSensor)
	cfg.IMUSensorID = sensor.ID(*imuSensor)
	cfg.Buffer.MaxSize = *bufferMaxSize
	cfg.Buffer.TimeoutS = *bufferTimeoutS

	for _, raw := range strings.Split(*requiredSensors, ",") {
		if raw == "" {
			continue
		}
		cfg.RequiredSensors = append(cfg.RequiredSensors, sensor.ID(raw))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func buildSinks(logger *logrus.Logger) ([]dispatcher.SinkConfig, *livefeed.Feed) {
	sinkConfigs := []dispatcher.SinkConfig{
		{Sink: sinks.NewLogSink("log", logger), QueueCapacity: 64},
	}

	var feed *livefeed.Feed
	if *enableLiveFeed {
		var validator *livefeed.TokenValidator
		if *liveFeedSigningKey != "" {
			validator = livefeed.NewTokenValidator([]byte(*liveFeedSigningKey))
		}
		feed = livefeed.New(validator, logger)
		sinkConfigs = append(sinkConfigs, dispatcher.SinkConfig{Sink: feed, QueueCapacity: 64})
	}

	return sinkConfigs, feed
}

func buildSources(cfg syncengine.Config, logger *logrus.Logger) []ingestion.Source {
	var sources []ingestion.Source

	for _, id := range cfg.RequiredSensors {
		switch {
		case *serialPort != "" && string(id) == *serialSensorID:
			continue // handled below, not as a mock source
		case id == cfg.IMUSensorID:
			sources = append(sources, mock.IMU(id, 200.0))
		default:
			sources = append(sources, mockSourceFor(id))
		}
	}

	if *serialPort != "" {
		serialCfg := serial.DefaultConfig()
		serialCfg.Port = *serialPort
		serialCfg.BaudRate = *serialBaud
		serialCfg.SensorID = sensor.ID(*serialSensorID)
		serialCfg.Kind = sensor.IMU
		sources = append(sources, serial.New(serialCfg, logger))
	}

	return sources
}

func mockSourceFor(id sensor.ID) ingestion.Source {
	switch {
	case strings.Contains(string(id), "lidar"):
		return mock.LiDAR(id, 20.0, 10000)
	case strings.Contains(string(id), "gnss"):
		return mock.GNSS(id, 10.0)
	default:
		return mock.Camera(id, 30.0, 1280, 720)
	}
}

func pollSinkMetrics(ctx context.Context, disp *dispatcher.Dispatcher, metrics *telemetry.Metrics) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.CollectSinks(disp.Metrics())
		}
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok","service":"syncframed"}`))
}

func statusHandler(engine *syncengine.Engine, disp *dispatcher.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"state":%q,"frame_count":%d,"motion_intensity":%f}`,
			engine.State().String(), engine.FrameCount(), engine.MotionIntensity())
	}
}
