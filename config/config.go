// Package config loads and validates the daemon's on-disk configuration:
// broadcast pacing, FTL0 session limits, the session supervisor's sweep
// cadence, and the file store's root and trash retention.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/ke4ahr/pacsatd/internal/cos"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// durationJSON round-trips a time.Duration through its text form ("500ms",
// "1h") instead of raw nanoseconds, so the on-disk file stays human
// editable.
type durationJSON time.Duration

func (d durationJSON) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *durationJSON) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrap(err, "config: bad duration")
	}
	*d = durationJSON(parsed)
	return nil
}

// Broadcast groups the scheduler's pacing knobs.
type Broadcast struct {
	Port              uint32       `json:"port"`
	Source            string       `json:"source"`
	DirectoryInterval durationJSON `json:"directory_interval"`
}

// Upload groups the FTL0 upload engine's ceilings.
type Upload struct {
	MaxSize        uint32       `json:"max_size"`
	SessionTimeout durationJSON `json:"session_timeout"`
}

// Download groups the FTL0 download engine's pacing.
type Download struct {
	ChunkPace      durationJSON `json:"chunk_pace"`
	SessionTimeout durationJSON `json:"session_timeout"`
}

// Store groups the content-addressed file store's on-disk layout and its
// bulk-cleanup floor: CleanupMaxFiles most-recent uploads are always kept
// regardless of age, and anything older than CleanupMaxAgeDays beyond that
// floor is soft-deleted on each supervisor sweep. CleanupMaxAgeDays <= 0
// disables age-based cleanup.
type Store struct {
	Root              string       `json:"root"`
	TrashRetention    durationJSON `json:"trash_retention"`
	CleanupMaxAgeDays int          `json:"cleanup_max_age_days"`
	CleanupMaxFiles   int          `json:"cleanup_max_files"`
}

// Supervisor groups the periodic housekeeping cadence.
type Supervisor struct {
	SweepInterval durationJSON `json:"sweep_interval"`
}

// Archive optionally cold-archives expired trash to S3 before it is
// unlinked. Bucket empty means cold-archiving is disabled; Bucket/Prefix
// are the only knobs the daemon needs, since everything else (credentials,
// endpoint) comes from the standard AWS config chain.
type Archive struct {
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
}

// Config is the complete daemon configuration.
type Config struct {
	Callsign   string     `json:"callsign"`
	Broadcast  Broadcast  `json:"broadcast"`
	Upload     Upload     `json:"upload"`
	Download   Download   `json:"download"`
	Store      Store      `json:"store"`
	Supervisor Supervisor `json:"supervisor"`
	Archive    Archive    `json:"archive"`
}

// Default returns the daemon's stock defaults: 20MB upload ceiling, 300s
// session timeout, 60s supervisor sweep, 100ms chunk pacing.
func Default() Config {
	return Config{
		Broadcast: Broadcast{
			Port:              0,
			Source:            "GROUND-1",
			DirectoryInterval: durationJSON(5 * time.Minute),
		},
		Upload: Upload{
			MaxSize:        20_000_000,
			SessionTimeout: durationJSON(300 * time.Second),
		},
		Download: Download{
			ChunkPace:      durationJSON(100 * time.Millisecond),
			SessionTimeout: durationJSON(300 * time.Second),
		},
		Store: Store{
			Root:              "./pacsat-store",
			TrashRetention:    durationJSON(7 * 24 * time.Hour),
			CleanupMaxAgeDays: 90,
			CleanupMaxFiles:   5000,
		},
		Supervisor: Supervisor{
			SweepInterval: durationJSON(60 * time.Second),
		},
	}
}

// Load reads a JSON config file at path, overlays it on Default() so any
// field the file does not set keeps its default value, and validates the
// result. It returns a fully-populated Config or an error.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: read")
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: parse")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ErrKind identifies a validation failure.
type ErrKind string

func (e ErrKind) Error() string { return string(e) }

const (
	ErrBadCallsign   ErrKind = "config: callsign may only contain letters, numbers, and interior dashes or underscores"
	ErrBadStoreRoot  ErrKind = "config: store root must be set"
	ErrBadUploadSize ErrKind = "config: upload max_size must be positive"
)

// Validate checks field ranges the daemon cannot safely start without.
func (c Config) Validate() error {
	if c.Callsign != "" && !cos.IsAlphaNice(c.Callsign) {
		return ErrBadCallsign
	}
	if c.Store.Root == "" {
		return ErrBadStoreRoot
	}
	if c.Upload.MaxSize == 0 {
		return ErrBadUploadSize
	}
	return nil
}
