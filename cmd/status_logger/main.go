// Command status_logger appends mount health to a daily log file.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	influxdb2 "github.com/influxdata/influxdb-client-go"

	"github.com/w1xm/slew_interface/internal/config"
	"github.com/w1xm/slew_interface/pwi"
	"github.com/w1xm/slew_interface/recorder"
	"github.com/w1xm/slew_interface/statuslog"
)

var (
	configPath = flag.String("config", "", "YAML config file")
	dir        = flag.String("dir", "", "log directory, overrides config")
	statusFile = flag.String("status_file", "", "file whose contents are logged each tick, overrides config")
	interval   = flag.Duration("interval", 0, "poll interval, overrides config")
)

func main() {
	flag.Parse()
	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = *c
	}
	if *dir != "" {
		cfg.StatusLog.Dir = *dir
	}
	if *statusFile != "" {
		cfg.StatusLog.StatusFile = *statusFile
	}
	if *interval > 0 {
		cfg.StatusLog.Interval = *interval
	}

	var points recorder.PointWriter
	if cfg.Influx.URL != "" {
		client := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
		defer client.Close()
		// Errors are drained by the logger.
		writeApi := client.WriteApi(cfg.Influx.Org, cfg.Influx.Bucket)
		defer writeApi.Close()
		points = writeApi
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mount := pwi.NewClient(cfg.Mount.BaseURL, cfg.Mount.RequestTimeout)
	l := statuslog.New(mount, statuslog.Config{
		Interval:   cfg.StatusLog.Interval,
		Dir:        cfg.StatusLog.Dir,
		StatusFile: cfg.StatusLog.StatusFile,
	}, points)
	log.Printf("logging mount status from %s to %s every %v", cfg.Mount.BaseURL, cfg.StatusLog.Dir, cfg.StatusLog.Interval)
	if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Print(err)
	}
}
