package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/l0/env"
)

var (
	statsInterval = time.Minute
)

func init() {
	env.SetupFlags()
	flag.DurationVar(&statsInterval, "stats-interval", statsInterval, "Interval of logging link counters, 0 to disable.")
}

func logStats(e *env.Env) fx.RunFunc {
	return func(ctx context.Context) error {
		if statsInterval <= 0 {
			<-ctx.Done()
			return ctx.Err()
		}
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, l := range e.Links.Links() {
					glog.Infof("link %s: %+v", l.Name(), l.Stats())
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func main() {
	flag.Parse()
	defer glog.Flush()

	e := env.NewConfig().MustNewEnv()
	err := fx.NewRunner().HandleSignals().Go(
		fx.NamedRun("env", fx.RunFunc(e.Run)),
		fx.NamedRun("stats", logStats(e)),
	).Wait()
	if err != nil {
		log.Fatalln(err)
	}
}
