// Package main is the PACSAT ground-station daemon: a radio-agnostic file
// store plus the FTL0 upload/download protocol and the directory/chunk
// broadcast scheduler, wired together behind one housekeeping supervisor.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ke4ahr/pacsatd/broadcast"
	"github.com/ke4ahr/pacsatd/config"
	"github.com/ke4ahr/pacsatd/ftl0"
	"github.com/ke4ahr/pacsatd/internal/cos"
	"github.com/ke4ahr/pacsatd/internal/hk"
	"github.com/ke4ahr/pacsatd/internal/nlog"
	"github.com/ke4ahr/pacsatd/metrics"
	"github.com/ke4ahr/pacsatd/radio"
	"github.com/ke4ahr/pacsatd/store"
	"github.com/ke4ahr/pacsatd/telemetry"
)

var (
	build     string
	buildtime string

	configPath string
	logDir     string
)

func init() {
	flag.StringVar(&configPath, "config", "", "path to pacsatd.json")
	flag.StringVar(&logDir, "logdir", "/var/log/pacsatd", "log directory")
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		printVer()
		os.Exit(0)
	}
	nlog.InitFlags(flag.CommandLine)
	flag.Parse()

	nlog.SetLogDirRole(logDir, "pacsatd")
	installSignalHandler()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			cos.ExitLogf("failed to load configuration from %q: %v", configPath, err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		cos.ExitLogf("invalid configuration: %v", err)
	}

	nlog.Infof("pacsatd %s (build %s) starting, callsign=%s", version(), buildtime, cfg.Callsign)

	st, err := store.Open(cfg.Store.Root, time.Duration(cfg.Store.TrashRetention))
	if err != nil {
		cos.ExitLogf("failed to open store at %q: %v", cfg.Store.Root, err)
	}
	defer st.Close()

	if cfg.Archive.Bucket != "" {
		archiver, archErr := store.NewS3Archiver(context.Background(), cfg.Archive.Bucket, cfg.Archive.Prefix)
		if archErr != nil {
			nlog.Warningf("cold-archive disabled: %v", archErr)
		} else {
			st.SetArchiver(archiver)
			nlog.Infof("cold-archiving expired trash to s3://%s/%s", cfg.Archive.Bucket, cfg.Archive.Prefix)
		}
	}

	// TODO(ke4ahr): no in-tree radio adapter is wired yet; the mock stands
	// in until a KISS/AGWPE adapter is selected.
	rd := radio.NewMock()

	reg := metrics.NewRegistry()
	reg.MustRegister(prometheus.DefaultRegisterer)

	uploads := ftl0.NewUploadEngine(st, cfg.Upload.MaxSize)
	downloads := ftl0.NewDownloadEngine(st, rd, time.Duration(cfg.Download.ChunkPace))
	sched := broadcast.NewScheduler(st, rd, cfg.Broadcast.Port, cfg.Broadcast.Source, time.Duration(cfg.Broadcast.DirectoryInterval))
	uploads.SetMetrics(reg)
	downloads.SetMetrics(reg)
	sched.SetMetrics(reg)

	status := telemetry.NewStatus()
	dispatchInbound(rd, status)

	sched.Start()
	defer sched.Stop()

	registerHousekeeping(uploads, downloads, st, reg, cfg)
	hk.WaitStarted()

	nlog.Infof("pacsatd ready: store=%q broadcast_every=%s upload_ceiling=%d",
		cfg.Store.Root, time.Duration(cfg.Broadcast.DirectoryInterval), cfg.Upload.MaxSize)

	waitForShutdown()

	nlog.Infof("pacsatd shutting down")
	hk.DefaultHK.Stop()
	rd.Stop()
	nlog.Flush(true)
}

// dispatchInbound routes WOD/realtime frames to the telemetry tracker and
// logs every other inbound frame as unhandled; FTL0 frames are not
// dispatched to the upload engine here. It installs the single callback
// radio.Radio.OnInbound documents.
func dispatchInbound(rd radio.Radio, status *telemetry.Status) {
	rd.OnInbound(func(f radio.Frame) {
		switch f.PID {
		case radio.PIDWholeOrbit, radio.PIDRealtime:
			status.OnInbound(f)
		default:
			nlog.Infof("unhandled inbound frame: pid=0x%02x src=%s", f.PID, f.Src)
		}
	})
}

// registerHousekeeping wires the session supervisor: periodic
// sweeps against both FTL0 engines and the store's trash/index cleanup,
// all driven by the shared internal/hk scheduler.
func registerHousekeeping(uploads *ftl0.UploadEngine, downloads *ftl0.DownloadEngine, st *store.Store, reg *metrics.Registry, cfg config.Config) {
	sweep := time.Duration(cfg.Supervisor.SweepInterval)
	uploadTimeout := time.Duration(cfg.Upload.SessionTimeout)
	downloadTimeout := time.Duration(cfg.Download.SessionTimeout)

	hk.Reg("ftl0-upload-sweep", func() time.Duration {
		if n := uploads.Sweep(uploadTimeout); n > 0 {
			nlog.Infof("housekeeping: dropped %d idle upload session(s)", n)
		}
		reg.ActiveUploads.Set(float64(len(uploads.ActiveSessions())))
		return sweep
	}, sweep)

	hk.Reg("ftl0-download-sweep", func() time.Duration {
		downloads.Sweep(downloadTimeout)
		return sweep
	}, sweep)

	hk.Reg("store-bulk-cleanup", func() time.Duration {
		report, err := st.BulkCleanup(cfg.Store.CleanupMaxAgeDays, cfg.Store.CleanupMaxFiles)
		if err != nil {
			nlog.Warningf("housekeeping: store cleanup failed: %v", err)
		} else if report.SoftDeleted > 0 || report.Purged > 0 {
			nlog.Infof("housekeeping: soft-deleted %d, purged %d trash entries", report.SoftDeleted, report.Purged)
		}
		if stats, err := st.GetStats(); err == nil {
			reg.ObserveStore(metrics.StoreInfo{LiveFiles: stats.LiveFiles, TrashFiles: stats.TrashFiles, TotalBytes: stats.TotalBytes})
		}
		return sweep
	}, sweep)

	go hk.DefaultHK.Run()
}

func installSignalHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		nlog.Infof("signal received, shutting down")
		shutdownC <- struct{}{}
	}()
}

var shutdownC = make(chan struct{}, 1)

func waitForShutdown() { <-shutdownC }

func version() string {
	if build == "" {
		return "dev"
	}
	return build
}

func printVer() {
	fmt.Printf("pacsatd %s (build %s)\n", version(), buildtime)
}
