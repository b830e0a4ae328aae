// Package diag carries non-fatal findings out of the interpreters without a
// process-wide logger.
package diag

import (
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

type Diagnostic struct {
	Severity Severity
	// Subject identifies the node the finding is about, e.g. a request body id.
	Subject string
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Subject, d.Message)
}

type Sink func(Diagnostic)

func Discard(Diagnostic) {}

func Warnf(sink Sink, subject, format string, args ...any) {
	if sink == nil {
		return
	}
	sink(Diagnostic{Severity: Warning, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// LogSink forwards diagnostics to a go-kit logger.
func LogSink(logger log.Logger) Sink {
	return func(d Diagnostic) {
		var l log.Logger
		switch d.Severity {
		case Error:
			l = level.Error(logger)
		default:
			l = level.Warn(logger)
		}
		_ = l.Log("msg", d.Message, "subject", d.Subject)
	}
}

// Tee sends every diagnostic to each non-nil sink.
func Tee(sinks ...Sink) Sink {
	return func(d Diagnostic) {
		for _, s := range sinks {
			if s != nil {
				s(d)
			}
		}
	}
}

type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

func (c *Collector) Sink() Sink {
	return func(d Diagnostic) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.items = append(c.items, d)
	}
}

func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
