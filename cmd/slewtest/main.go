// Command slewtest measures mount slew speed, either once from the command
// line or on demand through a websocket server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"golang.org/x/sync/errgroup"

	"github.com/w1xm/slew_interface/internal/config"
	"github.com/w1xm/slew_interface/internal/hub"
	"github.com/w1xm/slew_interface/internal/observability"
	"github.com/w1xm/slew_interface/pwi"
	"github.com/w1xm/slew_interface/recorder"
	"github.com/w1xm/slew_interface/slewtest"
)

var (
	configPath = flag.String("config", "", "YAML config file")
	baseURL    = flag.String("base_url", "", "mount API base URL, overrides config")
	testName   = flag.String("test", "normal", "test to run: normal, az, alt or diagonal")
	altitude   = flag.Float64("alt", 45, "target altitude for a normal slew")
	azimuth    = flag.Float64("az", 180, "target azimuth for a normal slew")
	serve      = flag.Bool("serve", false, "serve the websocket API instead of running one test")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = *c
	}
	if *baseURL != "" {
		cfg.Mount.BaseURL = *baseURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "slewtest",
		Exporter:    cfg.Tracing.Exporter,
	})
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown)

	mount := pwi.NewClient(cfg.Mount.BaseURL, cfg.Mount.RequestTimeout)
	recorders := recorder.Multi{recorder.NewFile(cfg.Record.Path)}
	if cfg.Influx.URL != "" {
		client := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
		defer client.Close()
		writeApi := client.WriteApi(cfg.Influx.Org, cfg.Influx.Bucket)
		defer writeApi.Close()
		go func() {
			for err := range writeApi.Errors() {
				log.Printf("write error: %v", err)
			}
		}()
		recorders = append(recorders, recorder.NewInflux(writeApi))
	}

	if *serve {
		return serveTests(ctx, cfg, mount, recorders)
	}
	return runOnce(ctx, cfg, mount, recorders)
}

func selectPlan() (slewtest.Plan, error) {
	if *testName == "normal" {
		return slewtest.NormalSlew(*altitude, *azimuth), nil
	}
	plan, ok := slewtest.Lookup(*testName)
	if !ok {
		return slewtest.Plan{}, fmt.Errorf("unknown test %q", *testName)
	}
	return plan, nil
}

func runOnce(ctx context.Context, cfg config.Config, mount *pwi.Client, rec slewtest.Recorder) error {
	plan, err := selectPlan()
	if err != nil {
		return err
	}
	runner := slewtest.New(mount, cfg.Runner(), rec, &console{})
	log.Printf("running %s to %v", plan.Label, plan.Target)
	result, err := runner.Run(ctx, plan)
	var recErr *slewtest.RecordError
	if err != nil && !errors.As(err, &recErr) {
		return err
	}
	fmt.Printf("%s\nDistance : %.4f deg\nTime     : %.4f sec\nSpeed    : %.4f deg/sec\n",
		result.Label, result.DistanceDeg, result.ElapsedSec, result.SpeedDegPerSec)
	return nil
}

func serveTests(ctx context.Context, cfg config.Config, mount *pwi.Client, rec slewtest.Recorder) error {
	collector, err := observability.NewCollector(nil)
	if err != nil {
		return err
	}
	h := hub.New()
	runner := slewtest.New(mount, cfg.Runner(), rec, slewtest.Observers{h, collector})
	server := hub.NewServer(ctx, h, runner)

	srv := &http.Server{
		Handler:     server.Router(collector.Handler()),
		Addr:        cfg.Server.Addr,
		ReadTimeout: 15 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// console prints live positions at most twice a second.
type console struct {
	mu   sync.Mutex
	last time.Time
}

func (c *console) Progress(altitude, azimuth float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.last) < 500*time.Millisecond {
		return
	}
	c.last = time.Now()
	fmt.Printf("Live Position: ALT=%.4f AZ=%.4f\n", altitude, azimuth)
}

func (c *console) Complete(r slewtest.Result) {
	fmt.Printf("Test completed: %s\n", r.Label)
}

func (c *console) Timeout(label string) {
	fmt.Printf("Timeout: %s did not settle\n", label)
}

func (c *console) Error(err error) {
	fmt.Printf("Error: %v\n", err)
}
