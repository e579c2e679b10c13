package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	apihttp "widget-lifecycle/internal/api/http"
	"widget-lifecycle/internal/config"
	"widget-lifecycle/internal/core/ports"
	"widget-lifecycle/internal/core/service"
	lifecyclegrpc "widget-lifecycle/internal/grpc"
	"widget-lifecycle/internal/host"
	"widget-lifecycle/internal/leak"
	"widget-lifecycle/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		httpAddr = flag.String("http_addr", "", "Diagnostics HTTP address (overrides config)")
		grpcAddr = flag.String("grpc_addr", "", "gRPC health address (overrides config)")
		logLevel = flag.String("log_level", "", "Log level (overrides config)")
		demo     = flag.Duration("demo", 0, "Mount and unmount a demo widget at this interval")
	)
	flag.Parse()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}
	if *grpcAddr != "" {
		cfg.GRPC.Addr = *grpcAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	if config.Watch(v, func(c config.Config, err error) {
		if err != nil {
			logger.WithError(err).Warn("ignoring invalid config change")
			return
		}
		if err := logging.SetLevel(logger, c.Log.Level); err != nil {
			logger.WithError(err).Warn("ignoring invalid log level")
			return
		}
		logger.WithField("level", c.Log.Level).Info("log level reloaded")
	}) {
		logger.WithField("file", v.ConfigFileUsed()).Info("watching config file")
	}

	health := lifecyclegrpc.New(logger)
	sampler := heapSampler(cfg.Leak.Sampler)

	var detector *leak.Detector
	if cfg.Leak.Enabled {
		detector = leak.New(leak.Options{
			HighSeverityCount:  cfg.Leak.HighSeverityCount,
			HeapThreshold:      cfg.Leak.HeapThreshold,
			HeapSampleInterval: cfg.Leak.HeapSampleInterval,
			ActivationCeiling:  cfg.Leak.ActivationCeiling,
			Sampler:            sampler,
			Logger:             logger,
			OnReport:           health.ReportLeak,
		})
	}
	svc := service.New(service.Options{
		Slot:     host.Global(),
		Detector: detector,
		Sampler:  sampler,
		Logger:   logger,
	})
	defer svc.Shutdown()

	var leaks apihttp.LeakSource
	if detector != nil {
		leaks = detector
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           apihttp.NewRouter(svc, leaks, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	grpcSrv := lifecyclegrpc.NewServer(health)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", cfg.HTTP.Addr).Info("diagnostics server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		logger.WithField("addr", cfg.GRPC.Addr).Info("grpc health server listening")
		return grpcSrv.Serve(lis)
	})
	if *demo > 0 {
		policy, err := cfg.Store.GCPolicy()
		if err != nil {
			return err
		}
		g.Go(func() error {
			runDemo(ctx, svc, policy, *demo, logger)
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		apihttp.SetDraining(true)
		health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func heapSampler(name string) ports.HeapSampler {
	switch name {
	case "rusage":
		return host.RusageSampler{}
	case "none":
		return host.Unavailable
	default:
		return host.RuntimeHeapSampler{}
	}
}
