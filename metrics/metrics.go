// Package metrics exposes Prometheus counters and gauges fed by the file
// store, FTL0 session engines, and the broadcast scheduler.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pacsatd"

// Registry groups every metric the daemon exports. Callers register it
// once against a prometheus.Registerer at startup.
type Registry struct {
	UploadsStarted    prometheus.Counter
	UploadsCompleted  prometheus.Counter
	UploadCRCMismatch prometheus.Counter
	ChunksReceived    prometheus.Counter
	ActiveUploads     prometheus.Gauge

	DownloadsServed prometheus.Counter
	ChunksSent      prometheus.Counter

	DirectorySweeps  prometheus.Counter
	DirectoryEntries prometheus.Counter

	StoreFiles      prometheus.Gauge
	StoreBytes      prometheus.Gauge
	StoreTrashFiles prometheus.Gauge
}

// NewRegistry constructs every metric, unregistered.
func NewRegistry() *Registry {
	return &Registry{
		UploadsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ftl0", Name: "uploads_started_total",
			Help: "FTL0 start_upload requests accepted.",
		}),
		UploadsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ftl0", Name: "uploads_completed_total",
			Help: "FTL0 uploads finalized with a matching CRC.",
		}),
		UploadCRCMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ftl0", Name: "upload_crc_mismatch_total",
			Help: "FTL0 complete_upload calls rejected on CRC mismatch.",
		}),
		ChunksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ftl0", Name: "chunks_received_total",
			Help: "FTL0 data chunks installed into an upload session.",
		}),
		ActiveUploads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ftl0", Name: "active_uploads",
			Help: "FTL0 upload sessions currently OPEN.",
		}),
		DownloadsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ftl0", Name: "downloads_served_total",
			Help: "FTL0 download requests that reached EOF.",
		}),
		ChunksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ftl0", Name: "chunks_sent_total",
			Help: "Data chunks emitted, by FTL0 hole-list downloads and by broadcast chunking.",
		}),
		DirectorySweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "broadcast", Name: "directory_sweeps_total",
			Help: "Periodic directory sweeps run.",
		}),
		DirectoryEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "broadcast", Name: "directory_entries_total",
			Help: "PFH frames emitted across all directory sweeps.",
		}),
		StoreFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "store", Name: "files",
			Help: "Live (non-trashed) files in the store.",
		}),
		StoreBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "store", Name: "bytes",
			Help: "Total body bytes across live files.",
		}),
		StoreTrashFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "store", Name: "trash_files",
			Help: "Soft-deleted files awaiting trash retention expiry.",
		}),
	}
}

// MustRegister registers every metric against reg, panicking on a
// duplicate-collector error the way package-level prometheus.MustRegister
// does.
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		r.UploadsStarted, r.UploadsCompleted, r.UploadCRCMismatch, r.ChunksReceived, r.ActiveUploads,
		r.DownloadsServed, r.ChunksSent,
		r.DirectorySweeps, r.DirectoryEntries,
		r.StoreFiles, r.StoreBytes, r.StoreTrashFiles,
	)
}

// StoreInfo is the subset of store.Stats this package observes, named
// locally so metrics doesn't import store (which would pull the whole
// domain stack into a package that should stay a leaf).
type StoreInfo struct {
	LiveFiles  int
	TrashFiles int
	TotalBytes int64
}

// ObserveStore refreshes the store gauges from a fresh snapshot; callers
// invoke this from the same supervisor sweep that calls store.GetStats.
func (r *Registry) ObserveStore(info StoreInfo) {
	r.StoreFiles.Set(float64(info.LiveFiles))
	r.StoreBytes.Set(float64(info.TotalBytes))
	r.StoreTrashFiles.Set(float64(info.TrashFiles))
}
