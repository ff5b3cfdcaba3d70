// Package nlog is the ground station's logger: buffered, timestamped,
// leveled, with size-based rotation. Every package logs through here
// instead of the standard "log" package.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{'I', 'W', 'E'}

// MaxSize is the log-file rotation threshold, in bytes.
var MaxSize int64 = 4 * 1024 * 1024

var (
	mu           sync.Mutex
	out          *bufio.Writer
	file         *os.File
	written      int64
	logDir       string
	role         string
	title        string
	toStderr     = true // default until SetLogDirRole points at a directory
	alsoToStderr bool
)

// SetLogDirRole points the logger at a directory and daemon role; once
// set, Info/Warning go to a rotating file instead of stderr.
func SetLogDirRole(dir, r string) {
	mu.Lock()
	defer mu.Unlock()
	logDir, role = dir, r
	if dir != "" {
		toStderr = false
	}
}

// SetTitle sets the banner line written at the top of each rotated file.
func SetTitle(s string) { title = s }

// AlsoToStderr mirrors file output to stderr as well (useful under systemd).
func AlsoToStderr(v bool) { alsoToStderr = v }

func Infof(format string, args ...any)    { write(sevInfo, 1, fmt.Sprintf(format, args...)) }
func Infoln(args ...any)                  { write(sevInfo, 1, fmt.Sprintln(args...)) }
func InfoDepth(depth int, args ...any)    { write(sevInfo, depth+1, fmt.Sprintln(args...)) }
func Warningf(format string, args ...any) { write(sevWarn, 1, fmt.Sprintf(format, args...)) }
func Warningln(args ...any)               { write(sevWarn, 1, fmt.Sprintln(args...)) }
func Errorf(format string, args ...any)   { write(sevErr, 1, fmt.Sprintf(format, args...)) }
func Errorln(args ...any)                 { write(sevErr, 1, fmt.Sprintln(args...)) }
func ErrorDepth(depth int, args ...any)   { write(sevErr, depth+1, fmt.Sprintln(args...)) }

func write(sev severity, depth int, msg string) {
	line := header(sev, depth+1) + msg
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	mu.Lock()
	defer mu.Unlock()

	if toStderr || alsoToStderr || sev >= sevErr {
		os.Stderr.WriteString(line)
	}
	if toStderr {
		return
	}
	ensureOpenLocked()
	if out == nil {
		return
	}
	n, _ := out.WriteString(line)
	written += int64(n)
	out.Flush()
	if written >= MaxSize {
		rotateLocked()
	}
}

func header(sev severity, depth int) string {
	var fn string
	var ln int
	if _, f, l, ok := runtime.Caller(depth + 1); ok {
		fn, ln = filepath.Base(f), l
	}
	return fmt.Sprintf("%c %s %s:%d ", sevChar[sev], time.Now().Format("15:04:05.000000"), fn, ln)
}

// Flush syncs buffered output to disk; the exit arg matches call sites
// that flush right before process exit.
func Flush(exit ...bool) {
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		out.Flush()
	}
	if file != nil {
		file.Sync()
	}
	_ = exit
}

func ensureOpenLocked() {
	if file != nil || logDir == "" {
		return
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		os.Stderr.WriteString("nlog: mkdir " + logDir + ": " + err.Error() + "\n")
		toStderr = true
		return
	}
	rotateLocked()
}

// rotateLocked opens a fresh log file, closing and rotating out the
// previous one if any. Caller holds mu.
func rotateLocked() {
	if file != nil {
		out.Flush()
		file.Close()
	}
	path := filepath.Join(logDir, logName(role, time.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		os.Stderr.WriteString("nlog: open " + path + ": " + err.Error() + "\n")
		toStderr = true
		return
	}
	file = f
	out = bufio.NewWriterSize(f, 32*1024)
	written = 0
	banner := fmt.Sprintf("# opened %s, %s %s/%s, pid %d\n",
		time.Now().Format(time.RFC3339), runtime.Version(), runtime.GOOS, runtime.GOARCH, os.Getpid())
	if title != "" {
		banner += title + "\n"
	}
	out.WriteString(banner)
}

func logName(role string, t time.Time) string {
	if role == "" {
		role = "pacsatd"
	}
	return fmt.Sprintf("%s.%s.log.%04d%02d%02d-%02d%02d%02d.%d",
		role, hostname(), t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), os.Getpid())
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
