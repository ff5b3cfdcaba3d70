// Package broadcast implements the two broadcast modes driven off one
// worker: periodic directory enumeration (one PFH per frame, PID 0xBD) and
// on-demand chunked body transmission (PID 0xBB). Both share one queue so
// a long chunk broadcast never collides with a directory sweep on the
// same radio.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package broadcast

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ke4ahr/pacsatd/internal/nlog"
	"github.com/ke4ahr/pacsatd/metrics"
	"github.com/ke4ahr/pacsatd/pfh"
	"github.com/ke4ahr/pacsatd/radio"
	"github.com/ke4ahr/pacsatd/store"
)

const (
	directoryPace = 500 * time.Millisecond
	chunkPace     = 100 * time.Millisecond
	chunkSize     = 256
)

type job struct {
	kind string // "directory" or "chunk"
	fn   uint32
	dst  string
}

// Scheduler is the single worker that paces both directory sweeps and
// on-demand chunk broadcasts over one radio.
type Scheduler struct {
	st    *store.Store
	rd    radio.Radio
	port  uint32
	src   string
	every time.Duration // directory sweep interval

	jobs    chan job
	stopCh  chan struct{}
	running int32
	wg      sync.WaitGroup

	metrics *metrics.Registry // optional; nil disables counters
}

func NewScheduler(st *store.Store, rd radio.Radio, port uint32, src string, directoryInterval time.Duration) *Scheduler {
	return &Scheduler{
		st:     st,
		rd:     rd,
		port:   port,
		src:    src,
		every:  directoryInterval,
		jobs:   make(chan job, 16),
		stopCh: make(chan struct{}),
	}
}

// SetMetrics installs the registry SweepDirectory/BroadcastChunks increment.
// Passing nil (the default) disables counting.
func (s *Scheduler) SetMetrics(m *metrics.Registry) { s.metrics = m }

// Start launches the worker goroutine and the periodic directory ticker.
func (s *Scheduler) Start() {
	atomic.StoreInt32(&s.running, 1)
	s.wg.Add(2)
	go s.runWorker()
	go s.runTicker()
}

// Stop honors the running flag at the next pacing boundary.
func (s *Scheduler) Stop() {
	atomic.StoreInt32(&s.running, 0)
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) isRunning() bool { return atomic.LoadInt32(&s.running) == 1 }

// pollInterval bounds how long the ticker goroutine sleeps between checks
// of the running flag, so Stop() is honored promptly instead of waiting
// out a full directory-sweep interval.
const pollInterval = 200 * time.Millisecond

func (s *Scheduler) runTicker() {
	defer s.wg.Done()
	var elapsed time.Duration
	for {
		select {
		case <-s.stopCh:
			return
		case <-time.After(pollInterval):
		}
		elapsed += pollInterval
		if elapsed >= s.every {
			elapsed = 0
			select {
			case s.jobs <- job{kind: "directory"}:
			case <-s.stopCh:
				return
			}
		}
	}
}

// BroadcastSingle enqueues an on-demand chunked body transmission for fn
// to dst, outside the periodic directory cadence.
func (s *Scheduler) BroadcastSingle(fn uint32, dst string) {
	if !s.isRunning() {
		return
	}
	select {
	case s.jobs <- job{kind: "chunk", fn: fn, dst: dst}:
	case <-s.stopCh:
	}
}

func (s *Scheduler) runWorker() {
	defer s.wg.Done()
	for {
		select {
		case j := <-s.jobs:
			switch j.kind {
			case "directory":
				s.SweepDirectory()
			case "chunk":
				s.BroadcastChunks(j.fn, j.dst)
			}
		case <-s.stopCh:
			return
		}
	}
}

// SweepDirectory enumerates a snapshot of store.List() and emits one UI
// frame per live file, newest-first, pacing 500ms between frames; each
// frame's payload is the file's serialized PFH (the bytes before
// body_offset). A file
// whose header fails to re-decode is skipped with a warning; the sweep
// never aborts.
func (s *Scheduler) SweepDirectory() {
	recs, err := s.st.List()
	if err != nil {
		nlog.Errorf("broadcast: directory sweep: list failed: %v", err)
		return
	}
	if s.metrics != nil {
		s.metrics.DirectorySweeps.Inc()
	}
	for i, rec := range recs {
		if !s.isRunning() {
			return
		}
		rc, err := s.st.Open(rec.FileNum)
		if err != nil {
			nlog.Warningf("broadcast: skipping file %d: %v", rec.FileNum, err)
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			nlog.Warningf("broadcast: skipping file %d: header read failed: %v", rec.FileNum, err)
			continue
		}
		hdr, err := pfh.Decode(raw)
		if err != nil {
			nlog.Warningf("broadcast: skipping file %d: header failed to re-decode: %v", rec.FileNum, err)
			continue
		}
		if int(hdr.BodyOffset) > len(raw) {
			nlog.Warningf("broadcast: skipping file %d: body offset %d past end of file", rec.FileNum, hdr.BodyOffset)
			continue
		}
		if err := s.rd.SendUI(s.port, "", s.src, radio.PIDDirectory, raw[:hdr.BodyOffset]); err != nil {
			nlog.Warningf("broadcast: send failed for file %d: %v", rec.FileNum, err)
			continue
		}
		if s.metrics != nil {
			s.metrics.DirectoryEntries.Inc()
		}
		if i < len(recs)-1 {
			time.Sleep(directoryPace)
		}
	}
}

// BroadcastChunks opens fn, takes its body, chops into 256-byte chunks,
// and emits each with PID 0xBB, paced 100ms apart.
func (s *Scheduler) BroadcastChunks(fn uint32, dst string) {
	_, body, err := s.st.ReadBody(fn)
	if err != nil {
		nlog.Warningf("broadcast: chunk request for file %d: %v", fn, err)
		return
	}

	for off := 0; off < len(body); off += chunkSize {
		if !s.isRunning() {
			return
		}
		end := off + chunkSize
		if end > len(body) {
			end = len(body)
		}
		if err := s.rd.SendUI(s.port, dst, s.src, radio.PIDFileChunk, body[off:end]); err != nil {
			nlog.Warningf("broadcast: chunk send failed for file %d: %v", fn, err)
			return
		}
		if s.metrics != nil {
			s.metrics.ChunksSent.Inc()
		}
		if end < len(body) {
			time.Sleep(chunkPace)
		}
	}
}
