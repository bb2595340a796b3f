package main

import (
	"context"
	"flag"
	"os"
	"sync"

	"mdingest/internal/ops"
	"mdingest/internal/pipeline"
	"mdingest/internal/server"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("ingest: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config (env MDINGEST_* overrides)")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		return err
	}

	if cfg.Profiling.ServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Profiling.ApplicationName,
			ServerAddress:   cfg.Profiling.ServerAddress,
			Tags: map[string]string{
				"vendor": cfg.Vendor.Name,
			},
			Logger: profilerLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return errors.Wrap(err, "start profiler")
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	p, err := pipeline.Build(cfg, pipeline.Option{})
	if err != nil {
		return err
	}
	defer p.Close()

	var batches server.BatchLister
	if p.Catalog != nil {
		batches = p.Catalog
	}
	srv := server.New(cfg.HTTP.Addr, p.Supervisor, p.Metrics, batches)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sys.Shutdown():
			logs.Info("ingest: shutdown requested")
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		wg     sync.WaitGroup
		srvErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		srvErr = srv.Run(ctx)
		if srvErr != nil {
			cancel()
		}
	}()

	logs.Infof("ingest: running feeds %v, output %s", cfg.EnabledFeeds(), cfg.Consolidator.Dir)
	runErr := p.Supervisor.Run(ctx)
	cancel()
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	return srvErr
}

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...interface{})  { logs.Infof(format, args...) }
func (profilerLogger) Debugf(_ string, _ ...interface{})         {}
func (profilerLogger) Errorf(format string, args ...interface{}) { logs.Errorf(format, args...) }
