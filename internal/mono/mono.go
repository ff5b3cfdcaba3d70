// Package mono provides a process-wide monotonic clock used for session
// timeouts and log rotation, independent of wall-clock adjustments.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns nanoseconds elapsed since process start, strictly
// increasing regardless of wall-clock changes (NTP steps, DST, etc.).
func NanoTime() int64 { return time.Since(start).Nanoseconds() }

// Since returns the elapsed duration since a NanoTime reading.
func Since(ns int64) time.Duration { return time.Duration(NanoTime() - ns) }
