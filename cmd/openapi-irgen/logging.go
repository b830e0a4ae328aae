package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

func configureLogging(target string, tee bool, lvl string) (log.Logger, func(), error) {
	w, cleanup, err := logWriter(target, tee)
	if err != nil {
		return nil, func() {}, err
	}
	allow, err := levelOption(lvl)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(logger, allow), cleanup, nil
}

func logWriter(target string, tee bool) (io.Writer, func(), error) {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "", "stderr":
		return os.Stderr, func() {}, nil
	case "stdout":
		return os.Stdout, func() {}, nil
	default:
		abs, err := filepath.Abs(target)
		if err != nil {
			return nil, func() {}, err
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, func() {}, err
		}
		file, err := os.OpenFile(abs, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, func() {}, err
		}
		var w io.Writer = file
		if tee {
			w = io.MultiWriter(file, os.Stderr)
		}
		return w, func() {
			_ = file.Close()
		}, nil
	}
}

func levelOption(lvl string) (level.Option, error) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	default:
		return nil, fmt.Errorf("unsupported log level %q", lvl)
	}
}
