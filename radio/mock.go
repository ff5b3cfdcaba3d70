package radio

import "sync"

// SentFrame records one outbound send, as captured by Mock.
type SentFrame struct {
	Kind    string // "ui", "chunk", "eof"
	Port    uint32
	Dst     string
	Src     string
	PID     byte
	FileNum uint32
	Offset  uint32
	Size    uint32
	CRC     uint16
	Payload []byte
}

// Mock is an in-memory Radio used by component tests: it records every
// send and lets tests drive inbound frames synchronously.
type Mock struct {
	mu      sync.Mutex
	sent    []SentFrame
	inbound InboundFunc
	stopped bool
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) SendUI(port uint32, dst, src string, pid byte, info []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentFrame{Kind: "ui", Port: port, Dst: dst, Src: src, PID: pid, Payload: append([]byte(nil), info...)})
	return nil
}

func (m *Mock) SendChunk(fileNum uint32, offset uint32, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentFrame{Kind: "chunk", PID: PIDFileChunk, FileNum: fileNum, Offset: offset, Payload: append([]byte(nil), payload...)})
	return nil
}

func (m *Mock) SendEOF(fileNum uint32, size uint32, crc uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentFrame{Kind: "eof", PID: PIDFileChunk, FileNum: fileNum, Size: size, CRC: crc})
	return nil
}

func (m *Mock) OnInbound(fn InboundFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = fn
}

func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// Deliver simulates an inbound frame arriving from the link.
func (m *Mock) Deliver(f Frame) {
	m.mu.Lock()
	cb := m.inbound
	m.mu.Unlock()
	if cb != nil {
		cb(f)
	}
}

// Sent returns a snapshot of everything sent so far.
func (m *Mock) Sent() []SentFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentFrame(nil), m.sent...)
}

func (m *Mock) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
