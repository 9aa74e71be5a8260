/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	main.go: two or three receiver DGPS field test
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/b3nn0/dgpstest/common"
	"github.com/b3nn0/dgpstest/dgps"
	"github.com/b3nn0/dgpstest/gps"
	"github.com/prometheus/client_golang/prometheus"
)

const MIN_FREE_SPACE = 64 * 1024 * 1024 // Warn below this much room for the logs

func main() {
	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Printf("%s\n", err.Error())
		os.Exit(2)
	}

	if cfg.Plot != "" {
		out := strings.TrimSuffix(cfg.Plot, ".txt") + ".png"
		if err := plotErrorLog(cfg.Plot, out); err != nil {
			log.Fatalf("plot: %s\n", err.Error())
		}
		log.Printf("wrote %s\n", out)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Printf("%s\n", err.Error())
		stop()
		os.Exit(1)
	}
}

func receiverOptions(cfg Config, role dgps.Role) (gps.ReceiverOptions, ReceiverConfig) {
	baud := uint32(cfg.Baudrate)
	switch role {
	case dgps.RoleReference:
		return gps.ReferenceReceiver(baud, byte(cfg.Recv1.DynModel), cfg.UsePPP), cfg.Recv1
	case dgps.RoleCorrectedRover:
		return gps.RoverReceiver(baud, byte(cfg.Recv2.DynModel), true), cfg.Recv2
	default:
		return gps.RoverReceiver(baud, byte(cfg.Recv3.DynModel), false), cfg.Recv3
	}
}

// sessionOpener opens real serial sessions, opener is nil outside of tests.
func sessionOpener(cfg Config, status *dgps.StatusBoard, opener gps.Opener) dgps.DeviceOpener {
	return func(role dgps.Role, appendLog bool) (dgps.Device, error) {
		opts, rc := receiverOptions(cfg, role)
		s, err := gps.Open(gps.SessionConfig{
			Name:     role.String(),
			Endpoint: rc.Port,
			Baud:     cfg.Baudrate,
			LogPath:  rc.Log,
			Receiver: opts,
			Opener:   opener,
			DEBUG:    cfg.Debug,
		}, appendLog)
		if err != nil {
			return nil, err
		}
		status.Opened(role, rc.Port)
		return s, nil
	}
}

func startMetrics(addr string, metrics *dgps.Metrics, status *dgps.StatusBoard) *common.ExitHelper {
	eh := common.NewExitHelper()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/status", status)
	srv := &http.Server{Addr: addr, Handler: mux}

	eh.Add()
	go func() {
		defer eh.Done()
		log.Printf("metrics: listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics: %s\n", err.Error())
		}
	}()
	eh.Add()
	go func() {
		defer eh.Done()
		<-eh.C
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()
	return eh
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	return runWith(ctx, cfg, out, nil, nil)
}

// runWith is run with the serial opener and metrics registry replaceable.
func runWith(ctx context.Context, cfg Config, out io.Writer, opener gps.Opener, reg prometheus.Registerer) error {
	for _, path := range []string{cfg.RTCMLog, cfg.ErrLog, cfg.Recv1.Log} {
		if path == "" {
			continue
		}
		if err := common.CheckFreeSpace(path, MIN_FREE_SPACE); err != nil {
			log.Printf("warning: %s\n", err.Error())
		}
	}

	state := dgps.NewSatelliteData()
	state.MinElevation = cfg.MinElevation
	state.MinQuality = cfg.MinQuality
	if cfg.Reference != "" {
		llh, err := dgps.ParseLLH(cfg.Reference)
		if err != nil {
			return err
		}
		ref := llh.ToECEF()
		state.ReferencePosition = &ref
		log.Printf("reference position %s, ECEF %s\n", llh, ref)
	}

	metrics, err := dgps.NewMetrics(reg)
	if err != nil {
		return err
	}
	status := dgps.NewStatusBoard()
	if cfg.Metrics != "" {
		eh := startMetrics(cfg.Metrics, metrics, status)
		defer eh.Exit()
	}

	rtcm, err := os.Create(cfg.RTCMLog)
	if err != nil {
		return fmt.Errorf("correction log: %w", err)
	}
	defer rtcm.Close()

	reporter, err := dgps.NewReporter(out, cfg.ErrLog)
	if err != nil {
		return err
	}
	defer reporter.Close()
	reporter.Metrics = metrics
	reporter.DEBUG = cfg.Debug

	var generators []dgps.Generator
	if cfg.Encoder != "" {
		generators, err = dgps.ParseEncoder(cfg.Encoder, dgps.DefaultCorrectionTypes()...)
		if err != nil {
			return err
		}
	} else {
		log.Printf("no -encoder given, no corrections will be generated\n")
	}

	fleet := dgps.NewFleet(sessionOpener(cfg, status, opener))
	roles := []dgps.Role{dgps.RoleReference, dgps.RoleCorrectedRover}
	if cfg.Recv3.Port != "" {
		roles = append(roles, dgps.RoleUncorrectedRover)
	}
	if err := fleet.Open(roles...); err != nil {
		fleet.Close()
		return err
	}

	scheduler := dgps.NewScheduler(func() dgps.EphemerisRequester { return fleet.Requester(dgps.RoleReference) })
	scheduler.Metrics = metrics
	pipeline := &dgps.Pipeline{
		Estimator:  dgps.AverageEstimator{},
		Generators: generators,
		Log:        rtcm,
		Forward:    !cfg.NoRTCM,
		Rover:      func() io.Writer { return fleet.Writer(dgps.RoleCorrectedRover) },
		Out:        out,
		Metrics:    metrics,
		DEBUG:      cfg.Debug,
	}
	pipeline.Start()
	defer pipeline.Stop()
	router := &dgps.Router{
		State:     state,
		Scheduler: scheduler,
		Pipeline:  pipeline,
		Reporter:  reporter,
		Metrics:   metrics,
		Status:    status,
		Out:       out,
	}
	loop := &dgps.Loop{
		Fleet:    fleet,
		Router:   router,
		Reopen:   cfg.Reopen,
		Deadline: cfg.Deadline,
		Out:      out,
		Metrics:  metrics,
		Status:   status,
	}
	return loop.Run(ctx)
}
