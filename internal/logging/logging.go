// Package logging owns the process-wide log output. Package loggers are
// created once at init time but write through a shared writer, so Configure
// can switch format and destination after they exist.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Formats accepted by Configure.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type switchWriter struct {
	mu sync.RWMutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.w
	s.w = w
	return prev
}

var output = &switchWriter{w: os.Stderr}

func init() {
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// Logger returns a logger tagged with pkg that follows Configure.
func Logger(pkg string) zerolog.Logger {
	return log.Logger.With().Str("pkg", pkg).Logger()
}

// NewWriter wraps w for the given format. JSON passes records through.
func NewWriter(w io.Writer, format string) (io.Writer, error) {
	switch strings.ToLower(format) {
	case "", FormatConsole:
		return zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}, nil
	case FormatJSON:
		return w, nil
	default:
		return nil, errors.Errorf("unsupported log format %q", format)
	}
}

// SetOutput redirects every logger to w, already formatted, and returns the
// previous writer.
func SetOutput(w io.Writer) io.Writer {
	return output.set(w)
}

// Configure sets the global level and sends all log lines to stderr in the
// given format.
func Configure(level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return errors.Wrap(err, "log level")
	}
	w, err := NewWriter(os.Stderr, format)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	SetOutput(w)
	return nil
}
