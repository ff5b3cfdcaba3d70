// Package telemetry decodes Whole-Orbit-Data (PID 0xB0) and realtime
// (PID 0xB1) housekeeping frames. Fixed-offset numeric unpacking only; no
// protocol engineering, no persistence, no store interaction. A decoded
// frame is opaque to the store/FTL0/broadcast core — this package exists
// purely so an operator-facing surface can render spacecraft health.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package telemetry

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/ke4ahr/pacsatd/radio"
)

const (
	minWODLen      = 64
	minRealtimeLen = 32
)

type ErrKind string

func (e ErrKind) Error() string { return string(e) }

const ErrShortFrame ErrKind = "telemetry: frame too short"

// WOD is a decoded Whole Orbit Data record.
type WOD struct {
	Timestamp       time.Time
	BatteryVoltage  float64 // V
	BatteryCurrent  float64 // A
	SolarPanelX     float64
	SolarPanelY     float64
	SolarPanelZ     float64
	TempTransmitter float64 // degrees C
	TempReceiver    float64
	TempBattery     float64
	RxDoppler       int16
	TxPower         float64 // W
	UptimeSeconds   uint32
	Reboots         uint16
	Mode            uint8
}

// Realtime is a decoded realtime housekeeping record.
type Realtime struct {
	Timestamp       time.Time
	BatteryVoltage  float64
	BusCurrent      float64
	TempPA          float64
	TempRx          float64
	RSSI            uint16
	ChannelActivity uint8
}

// DecodeWOD unpacks a PID 0xB0 frame body. Fields and scale factors mirror
// the ground-station reference decoder byte for byte.
func DecodeWOD(data []byte) (WOD, error) {
	if len(data) < minWODLen {
		return WOD{}, ErrShortFrame
	}
	le := binary.LittleEndian
	return WOD{
		Timestamp:       time.Now(),
		BatteryVoltage:  float64(le.Uint16(data[0:2])) / 100.0,
		BatteryCurrent:  float64(le.Uint16(data[2:4])) / 100.0,
		SolarPanelX:     float64(le.Uint16(data[4:6])) / 100.0,
		SolarPanelY:     float64(le.Uint16(data[6:8])) / 100.0,
		SolarPanelZ:     float64(le.Uint16(data[8:10])) / 100.0,
		TempTransmitter: float64(int16(le.Uint16(data[10:12]))) / 10.0,
		TempReceiver:    float64(int16(le.Uint16(data[12:14]))) / 10.0,
		TempBattery:     float64(int16(le.Uint16(data[14:16]))) / 10.0,
		RxDoppler:       int16(le.Uint16(data[16:18])),
		TxPower:         float64(le.Uint16(data[18:20])) / 10.0,
		UptimeSeconds:   le.Uint32(data[20:24]),
		Reboots:         le.Uint16(data[24:26]),
		Mode:            data[26],
	}, nil
}

// DecodeRealtime unpacks a PID 0xB1 frame body.
func DecodeRealtime(data []byte) (Realtime, error) {
	if len(data) < minRealtimeLen {
		return Realtime{}, ErrShortFrame
	}
	le := binary.LittleEndian
	return Realtime{
		Timestamp:       time.Now(),
		BatteryVoltage:  float64(le.Uint16(data[0:2])) / 100.0,
		BusCurrent:      float64(le.Uint16(data[2:4])) / 100.0,
		TempPA:          float64(int16(le.Uint16(data[4:6]))) / 10.0,
		TempRx:          float64(int16(le.Uint16(data[6:8]))) / 10.0,
		RSSI:            le.Uint16(data[8:10]),
		ChannelActivity: data[10],
	}, nil
}

// Status is a concurrency-safe holder of the most recently decoded frame
// of each kind, wired as radio.InboundFunc to track spacecraft health
// alongside the core upload/download/broadcast traffic.
type Status struct {
	mu       sync.Mutex
	lastWOD  *WOD
	lastRT   *Realtime
	lastSeen time.Time
}

func NewStatus() *Status { return &Status{} }

// OnInbound is a radio.InboundFunc: frames outside PID 0xB0/0xB1 are
// ignored, and a frame too short to decode is dropped silently, matching
// the reference decoder's "return None" tolerance.
func (s *Status) OnInbound(f radio.Frame) {
	switch f.PID {
	case radio.PIDWholeOrbit:
		w, err := DecodeWOD(f.Payload)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.lastWOD = &w
		s.lastSeen = w.Timestamp
		s.mu.Unlock()
	case radio.PIDRealtime:
		r, err := DecodeRealtime(f.Payload)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.lastRT = &r
		s.lastSeen = r.Timestamp
		s.mu.Unlock()
	}
}

// Summary is a snapshot of the satellite's last-known health.
type Summary struct {
	LastWOD      *WOD
	LastRealtime *Realtime
	Healthy      bool
	LastSeen     time.Time
}

func (s *Status) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		LastWOD:      s.lastWOD,
		LastRealtime: s.lastRT,
		Healthy:      s.lastWOD != nil || s.lastRT != nil,
		LastSeen:     s.lastSeen,
	}
}
