// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package accesslog records one Entry per completed REST request.
// Entries go to a Writer through an Async queue, so a slow or failing
// log destination never holds up a response: when the queue is full
// entries are dropped.
package accesslog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// MaxSummary is the most characters kept of a request or response
// body.
const MaxSummary = 5000

// DefaultQueueSize is the Async queue length if none is given.
const DefaultQueueSize = 1000

// Entry describes one completed request.  Entries are append-only.
type Entry struct {
	Time       time.Time
	Method     string
	URI        string
	Version    string
	Status     int
	Request    string
	Response   string
	Identifier string

	// Resource is the URL name of the resource served.
	Resource string

	Duration time.Duration
}

// Truncate shortens s to MaxSummary characters.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxSummary {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxSummary])
}

// A Sink accepts entries without blocking.
type Sink interface {
	Log(e Entry)
}

// A Writer stores entries.
type Writer interface {
	Write(ctx context.Context, e Entry) error
}

// Discard is a Sink that ignores everything.
type Discard struct{}

// Log does nothing.
func (Discard) Log(Entry) {}

// Async is a Sink feeding a Writer from a bounded queue on its own
// goroutine.
type Async struct {
	writer  Writer
	log     logrus.FieldLogger
	entries chan Entry
	done    chan struct{}
	dropped int64

	lock   sync.RWMutex
	closed bool
}

// NewAsync starts a queue of size entries in front of w.  Write
// failures are reported to log.
func NewAsync(w Writer, size int, log logrus.FieldLogger) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := &Async{
		writer:  w,
		log:     log,
		entries: make(chan Entry, size),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.entries {
		if err := a.writer.Write(context.Background(), e); err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{
				"uri":    e.URI,
				"status": e.Status,
			}).Warn("could not write access log entry")
		}
	}
}

// Log queues e, dropping it if the queue is full or closed.
func (a *Async) Log(e Entry) {
	a.lock.RLock()
	defer a.lock.RUnlock()
	if a.closed {
		atomic.AddInt64(&a.dropped, 1)
		return
	}
	select {
	case a.entries <- e:
	default:
		atomic.AddInt64(&a.dropped, 1)
	}
}

// Dropped returns the number of entries lost so far.
func (a *Async) Dropped() int64 {
	return atomic.LoadInt64(&a.dropped)
}

// Close stops accepting entries and waits for the queue to drain.
func (a *Async) Close() {
	a.lock.Lock()
	if !a.closed {
		a.closed = true
		close(a.entries)
	}
	a.lock.Unlock()
	<-a.done
}

// LogrusWriter writes entries as structured log lines.
type LogrusWriter struct {
	Log logrus.FieldLogger
}

// Write logs e at info level.
func (w LogrusWriter) Write(ctx context.Context, e Entry) error {
	log := w.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"time":       e.Time,
		"method":     e.Method,
		"uri":        e.URI,
		"version":    e.Version,
		"status":     e.Status,
		"identifier": e.Identifier,
		"resource":   e.Resource,
		"duration":   e.Duration,
	}).Info("request")
	return nil
}
