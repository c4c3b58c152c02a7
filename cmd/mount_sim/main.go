// Command mount_sim serves a simulated mount on the PWI HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/w1xm/slew_interface/pwi/simulator"
)

var (
	addr   = flag.String("addr", "127.0.0.1:8220", "listen address")
	maxVel = flag.Float64("max_vel", simulator.DefaultConfig.MaxVel, "maximum axis speed in deg/sec")
)

func main() {
	flag.Parse()
	cfg := simulator.DefaultConfig
	cfg.MaxVel = *maxVel
	sim := simulator.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Handler:      sim.Handler(),
		Addr:         *addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sim.Run(ctx)
	})
	g.Go(func() error {
		log.Printf("simulated mount listening on %s", *addr)
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
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
