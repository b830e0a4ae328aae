package diag

import (
	"bytes"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink(log.NewLogfmtLogger(&buf))

	Warnf(sink, "CreateUser", "multiple media types, using %q", "application/json")

	assert.Equal(t, `level=warn msg="multiple media types, using \"application/json\"" subject=CreateUser`+"\n", buf.String())
}

func TestCollectorAndTee(t *testing.T) {
	var a, b Collector
	sink := Tee(a.Sink(), nil, b.Sink())

	sink(Diagnostic{Severity: Error, Subject: "x", Message: "boom"})
	Warnf(sink, "y", "careful")

	require.Equal(t, 2, a.Len())
	assert.Equal(t, a.Diagnostics(), b.Diagnostics())
	assert.Equal(t, "error: x: boom", a.Diagnostics()[0].String())
	assert.Equal(t, Warning, a.Diagnostics()[1].Severity)
}

func TestWarnfNilSink(t *testing.T) {
	assert.NotPanics(t, func() { Warnf(nil, "x", "ignored") })
}
