// Package ftl0 implements the FTL0 hole-list file transfer protocol: the
// upload engine (per-file sessions, out-of-order chunk installation, hole
// computation, CRC finalization) and the download engine (hole-list-driven
// chunk emission).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package ftl0

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ke4ahr/pacsatd/internal/crc16"
	"github.com/ke4ahr/pacsatd/internal/debug"
	"github.com/ke4ahr/pacsatd/internal/nlog"
	"github.com/ke4ahr/pacsatd/internal/prob"
	"github.com/ke4ahr/pacsatd/metrics"
	"github.com/ke4ahr/pacsatd/pfh"
	"github.com/ke4ahr/pacsatd/store"
)

type ErrKind string

func (e ErrKind) Error() string { return string(e) }

const (
	ErrDuplicateSession ErrKind = "ftl0: duplicate session"
	ErrInvalidSize      ErrKind = "ftl0: invalid size"
	ErrOutOfRange       ErrKind = "ftl0: chunk out of range"
	ErrIncomplete       ErrKind = "ftl0: incomplete"
	ErrCrcMismatch      ErrKind = "ftl0: crc mismatch"
	ErrNoSuchSession    ErrKind = "ftl0: no such session"
)

// Hole is an inclusive byte range the receiver still needs.
type Hole struct {
	Start, End uint32
}

// chunk is one installed, disjoint byte span.
type chunk struct {
	offset uint32
	data   []byte
}

// Session is a single file's in-progress upload.
type Session struct {
	FileNum      uint32
	DeclaredSize uint32
	Callsign     string
	LastActivity time.Time

	mu     sync.Mutex
	chunks []chunk // kept sorted by offset
}

// PFHInfo carries the client-declared header fields used to synthesize the
// stored PFH on successful finalization.
type PFHInfo struct {
	Name        string
	Ext         string
	FileType    uint8
	Description string
	Compression uint8
	Priority    uint8
	Forwarding  []string
}

// UploadEngine owns all in-progress upload sessions for one store.
type UploadEngine struct {
	MaxUploadSize uint32 // default 20_000_000, configurable via config.Upload.MaxSize

	st *store.Store

	mu       sync.Mutex
	sessions map[uint32]*Session

	// completed records file numbers whose upload was finalized. When a
	// chunk arrives for a file with no open session, a hit in this cuckoo
	// filter marks it as a late duplicate for an already-committed file and
	// is logged at info level; AddChunk still returns ErrNoSuchSession.
	// StartUpload does not consult it.
	completed *prob.Filter

	metrics *metrics.Registry // optional; nil disables counters
}

func NewUploadEngine(st *store.Store, maxUploadSize uint32) *UploadEngine {
	return &UploadEngine{
		MaxUploadSize: maxUploadSize,
		st:            st,
		sessions:      make(map[uint32]*Session),
		completed:     prob.NewDefault(4096),
	}
}

// SetMetrics installs the registry StartUpload/AddChunk/CompleteUpload
// increments. Passing nil (the default) disables counting.
func (e *UploadEngine) SetMetrics(m *metrics.Registry) { e.metrics = m }

// StartUpload opens a new session for fn. Fails with ErrDuplicateSession if
// fn is already OPEN, ErrInvalidSize for size <= 0 or size > MaxUploadSize.
func (e *UploadEngine) StartUpload(fn uint32, size uint32, callsign string) error {
	if size == 0 || size > e.MaxUploadSize {
		return ErrInvalidSize
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[fn]; ok {
		return ErrDuplicateSession
	}
	e.sessions[fn] = &Session{
		FileNum:      fn,
		DeclaredSize: size,
		Callsign:     callsign,
		LastActivity: time.Now(),
	}
	if e.metrics != nil {
		e.metrics.UploadsStarted.Inc()
	}
	return nil
}

func (e *UploadEngine) session(fn uint32) (*Session, error) {
	e.mu.Lock()
	s, ok := e.sessions[fn]
	e.mu.Unlock()
	if !ok {
		return nil, ErrNoSuchSession
	}
	return s, nil
}

// AddChunk installs (offset, data) into fn's session if no chunk already
// occupies that offset (idempotent, first-write-wins), and returns the
// resulting hole list. A chunk straddling declared_size is rejected with
// ErrOutOfRange; a zero-length chunk is ignored.
func (e *UploadEngine) AddChunk(fn uint32, offset uint32, data []byte) ([]Hole, error) {
	if len(data) == 0 {
		s, err := e.session(fn)
		if err != nil {
			return nil, err
		}
		return s.holes(), nil
	}

	s, err := e.session(fn)
	if err != nil {
		if e.completed.Lookup(fnKey(fn)) {
			nlog.Infof("ftl0: dropping late chunk for already-completed file %d", fn)
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	end := uint64(offset) + uint64(len(data))
	if end > uint64(s.DeclaredSize) {
		return nil, ErrOutOfRange
	}

	s.LastActivity = time.Now()
	s.installLocked(offset, data)
	if e.metrics != nil {
		e.metrics.ChunksReceived.Inc()
	}
	return s.holesLocked(), nil
}

func fnKey(fn uint32) []byte {
	return []byte{byte(fn), byte(fn >> 8), byte(fn >> 16), byte(fn >> 24)}
}

func (s *Session) installLocked(offset uint32, data []byte) {
	for _, c := range s.chunks {
		if c.offset == offset {
			return // duplicate offset discarded
		}
	}
	s.chunks = append(s.chunks, chunk{offset: offset, data: data})
	sort.Slice(s.chunks, func(i, j int) bool { return s.chunks[i].offset < s.chunks[j].offset })
}

func (s *Session) holes() []Hole {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holesLocked()
}

// holesLocked walks installed chunks in offset order, emitting a gap for
// every byte not yet covered, including a final gap if the tail is
// missing.
func (s *Session) holesLocked() []Hole {
	var holes []Hole
	expected := uint32(0)
	for _, c := range s.chunks {
		if c.offset > expected {
			holes = append(holes, Hole{Start: expected, End: c.offset - 1})
		}
		next := c.offset + uint32(len(c.data))
		if next > expected {
			expected = next
		}
	}
	if expected < s.DeclaredSize {
		holes = append(holes, Hole{Start: expected, End: s.DeclaredSize - 1})
	}
	return holes
}

// CompleteUpload requires an empty hole list; it concatenates chunks in
// offset order, compares CRC16(body) against clientCRC, and on match
// synthesizes a PFH and commits to the store, dropping the session. On
// mismatch or incompleteness the session is retained so the client can
// resend.
func (e *UploadEngine) CompleteUpload(fn uint32, clientCRC uint16, info PFHInfo) (uint32, error) {
	s, err := e.session(fn)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	holes := s.holesLocked()
	if len(holes) > 0 {
		s.mu.Unlock()
		return 0, ErrIncomplete
	}
	body := make([]byte, 0, s.DeclaredSize)
	for _, c := range s.chunks {
		body = append(body, c.data...)
	}
	s.mu.Unlock()

	debug.Assert(uint32(len(body)) == s.DeclaredSize)
	if crc16.Checksum(body) != clientCRC {
		if e.metrics != nil {
			e.metrics.UploadCRCMismatch.Inc()
		}
		return 0, ErrCrcMismatch
	}

	p := pfh.PFH{
		Name:        info.Name,
		Ext:         info.Ext,
		FileType:    info.FileType,
		Description: info.Description,
		Compression: info.Compression,
		Priority:    info.Priority,
		Forwarding:  info.Forwarding,
	}
	if err := e.st.CommitAt(fn, s.Callsign, p, body); err != nil {
		return 0, err
	}

	e.mu.Lock()
	delete(e.sessions, fn)
	e.mu.Unlock()
	e.completed.InsertUnique(fnKey(fn))
	if e.metrics != nil {
		e.metrics.UploadsCompleted.Inc()
	}

	return fn, nil
}

// Sweep drops sessions idle for longer than timeout; it is invoked by the
// session supervisor's periodic sweep. Idle checks against
// each session's own lock run concurrently, since a large session table
// means many independent, short per-session locks rather than one
// contended pass.
func (e *UploadEngine) Sweep(timeout time.Duration) (dropped int) {
	now := time.Now()

	e.mu.Lock()
	snapshot := make(map[uint32]*Session, len(e.sessions))
	for fn, s := range e.sessions {
		snapshot[fn] = s
	}
	e.mu.Unlock()

	var (
		mu   sync.Mutex
		idle []uint32
		g    errgroup.Group
	)
	for fn, s := range snapshot {
		fn, s := fn, s
		g.Go(func() error {
			s.mu.Lock()
			expired := now.Sub(s.LastActivity) > timeout
			s.mu.Unlock()
			if expired {
				mu.Lock()
				idle = append(idle, fn)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	e.mu.Lock()
	for _, fn := range idle {
		delete(e.sessions, fn)
		dropped++
	}
	e.mu.Unlock()
	return dropped
}

// ActiveSessions returns the file numbers with an OPEN upload session.
func (e *UploadEngine) ActiveSessions() []uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]uint32, 0, len(e.sessions))
	for fn := range e.sessions {
		out = append(out, fn)
	}
	return out
}
