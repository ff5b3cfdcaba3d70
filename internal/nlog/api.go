// Package nlog - CLI flag wiring for the logger.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"flag"
	"time"
)

// InitFlags registers the standard -logtostderr/-alsologtostderr flags
// against this package's logging destination.
func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", toStderr, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", alsoToStderr, "log to standard error as well as files")
}

func InfoLogName() string { return logName(role, time.Now()) }
func ErrLogName() string  { return logName(role, time.Now()) }
