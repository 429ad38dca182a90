// Package logging builds the process logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls where and how much is logged.
type Options struct {
	// Dir holds trigcap.log. Empty selects DefaultDir.
	Dir string
	// Level is a zap level name: debug, info, warn, error.
	Level string
	// Verbose also writes human-readable lines to stderr.
	Verbose bool
	// NoFile disables the log file, e.g. for one-shot CLI commands.
	NoFile bool
}

// FileName is the log file inside the log directory.
const FileName = "trigcap.log"

// DefaultDir returns ~/.trigcap/logs, creating it if needed.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".trigcap", "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// New returns a logger writing JSON lines to the log file and, when
// Verbose, console lines to stderr. The returned func syncs and closes.
func New(opts Options) (*zap.Logger, func(), error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}

	var cores []zapcore.Core
	closeFile := func() {}

	if !opts.NoFile {
		dir := opts.Dir
		if dir == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, nil, fmt.Errorf("log directory: %w", err)
			}
			dir = d
		} else if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("log directory: %w", err)
		}

		f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closeFile = func() { _ = f.Close() }

		enc := zap.NewProductionEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(f), level))
	}

	if opts.Verbose {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() {}, nil
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return logger, func() {
		_ = logger.Sync()
		closeFile()
	}, nil
}
