package ftl0

import (
	"fmt"
	"sync"
	"time"

	"github.com/ke4ahr/pacsatd/internal/crc16"
	"github.com/ke4ahr/pacsatd/internal/nlog"
	"github.com/ke4ahr/pacsatd/metrics"
	"github.com/ke4ahr/pacsatd/radio"
	"github.com/ke4ahr/pacsatd/store"
)

const ErrNoSuchFile ErrKind = "ftl0: no such file"

// DownloadSession is the ephemeral per-client bookkeeping the supervisor
// reaps; the engine itself is stateless across requests (every request is
// self-describing by its hole list).
type DownloadSession struct {
	FileNum      uint32
	ClientCall   string
	LastActivity time.Time
}

// DownloadEngine serves hole-list requests out of the store.
type DownloadEngine struct {
	st   *store.Store
	rd   radio.Radio
	pace time.Duration // inter-frame pacing between chunk emissions

	mu       sync.Mutex
	sessions map[string]*DownloadSession

	metrics *metrics.Registry // optional; nil disables counters
}

func NewDownloadEngine(st *store.Store, rd radio.Radio, pace time.Duration) *DownloadEngine {
	return &DownloadEngine{st: st, rd: rd, pace: pace, sessions: make(map[string]*DownloadSession)}
}

// SetMetrics installs the registry HandleRequest increments. Passing nil
// (the default) disables counting.
func (e *DownloadEngine) SetMetrics(m *metrics.Registry) { e.metrics = m }

func sessionKey(clientCall string, fn uint32) string { return fmt.Sprintf("%s/%d", clientCall, fn) }

// HandleRequest serves one hole-list request: resolves fn via the store,
// decodes its PFH to find the body offset, emits a chunk frame per
// (start, end) in holeList (clamped to the body, dropped if empty after
// clamping), and on an empty hole list (client signaling completion)
// emits an end-of-file frame and bumps the download counter.
func (e *DownloadEngine) HandleRequest(fn uint32, holeList []Hole, clientCall string) error {
	e.touch(clientCall, fn)

	_, body, err := e.st.ReadBody(fn)
	if err != nil {
		if err == store.ErrNotFound {
			nlog.Warningf("ftl0: download request for unknown file %d from %s", fn, clientCall)
			return ErrNoSuchFile
		}
		return err
	}

	if len(holeList) == 0 {
		crc := crc16.Checksum(body)
		if err := e.rd.SendEOF(fn, uint32(len(body)), crc); err != nil {
			return err
		}
		if err := e.st.IncrementDownloadCount(fn); err != nil {
			nlog.Warningf("ftl0: increment download count for %d: %v", fn, err)
		}
		if e.metrics != nil {
			e.metrics.DownloadsServed.Inc()
		}
		return nil
	}

	for i, h := range holeList {
		start, end := h.Start, h.End
		if start >= uint32(len(body)) {
			continue
		}
		if end >= uint32(len(body)) {
			end = uint32(len(body)) - 1
		}
		if end < start {
			continue
		}
		if err := e.rd.SendChunk(fn, start, body[start:end+1]); err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.ChunksSent.Inc()
		}
		if i < len(holeList)-1 && e.pace > 0 {
			time.Sleep(e.pace)
		}
	}
	return nil
}

func (e *DownloadEngine) touch(clientCall string, fn uint32) {
	key := sessionKey(clientCall, fn)
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[key]
	if !ok {
		s = &DownloadSession{FileNum: fn, ClientCall: clientCall}
		e.sessions[key] = s
	}
	s.LastActivity = time.Now()
}

// Sweep drops download sessions idle for longer than timeout.
func (e *DownloadEngine) Sweep(timeout time.Duration) (dropped int) {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, s := range e.sessions {
		if now.Sub(s.LastActivity) > timeout {
			delete(e.sessions, key)
			dropped++
		}
	}
	return dropped
}
