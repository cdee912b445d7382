// Command devicesim replays a route as a worker's device against a running
// tracking service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"fleet-tracking/internal/geo"
	"fleet-tracking/internal/logging"
	"fleet-tracking/internal/source"
)

// defaultRoute is a short loop along the Hamburg harbour front.
var defaultRoute = []geo.Point{
	{Lat: 53.5511, Lng: 9.9937},
	{Lat: 53.5501, Lng: 9.9901},
	{Lat: 53.5456, Lng: 9.9662},
	{Lat: 53.5447, Lng: 9.9553},
	{Lat: 53.5438, Lng: 9.9663},
	{Lat: 53.5462, Lng: 9.9852},
}

type routeFile struct {
	Waypoints []geo.Point `yaml:"waypoints"`
}

func main() {
	server := pflag.String("server", "http://localhost:8080", "tracking service base URL")
	token := pflag.String("token", os.Getenv("WORKER_TOKEN"), "worker bearer token (default $WORKER_TOKEN)")
	routePath := pflag.String("route", "", "YAML file with a waypoints list; a built-in route is used when empty")
	loop := pflag.Bool("loop", true, "restart the route after the last waypoint")
	interval := pflag.Duration("interval", 5*time.Second, "sampling interval")
	minMove := pflag.Float64("min-move", 10, "minimum movement in meters before a fix is sent")
	routeID := pflag.String("route-id", "", "route id sent with start-tracking")
	vehicleID := pflag.String("vehicle-id", "", "vehicle id sent with start-tracking")
	logLevel := pflag.String("log-level", "info", "log level")
	pflag.Parse()

	if *token == "" {
		log.Fatalf("a worker token is required (--token or WORKER_TOKEN)")
	}

	waypoints := defaultRoute
	if *routePath != "" {
		var err error
		waypoints, err = loadRoute(*routePath)
		if err != nil {
			log.Fatalf("route error: %v", err)
		}
	}

	logger := logging.New(os.Stderr, "text", *logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := source.NewHTTPSender(*server, *token, nil)
	if err := sender.StartTracking(ctx, *routeID, *vehicleID); err != nil {
		log.Fatalf("start tracking: %v", err)
	}
	logger.Info("tracking started", "waypoints", len(waypoints))

	cfg := source.DefaultConfig()
	cfg.UpdateInterval = *interval
	cfg.MinMovementMeters = *minMove

	sampler, err := source.NewSampler(cfg, source.NewRouteLocator(waypoints, *loop), sender,
		source.WithLogger(logger),
		source.WithErrorHandler(func(e *source.LocationError) {
			logger.Warn("location error", "code", e.Code, "message", e.Message, "hint", e.Hint)
		}),
	)
	if err != nil {
		log.Fatalf("sampler error: %v", err)
	}

	_ = sampler.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sender.StopTracking(stopCtx); err != nil {
		logger.Warn("stop tracking failed", "error", err)
		return
	}
	logger.Info("tracking stopped")
}

func loadRoute(path string) ([]geo.Point, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f routeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return f.Waypoints, nil
}
