// Package log provides structured logging for intelicar on top of zerolog.
//
// Loggers take a message followed by alternating key/value pairs:
//
//	logger := log.GetLoggerWithName("tabular")
//	logger.Info("Training completed",
//		log.OperationKey, log.OperationFit,
//		log.DurationMsKey, elapsed.Milliseconds(),
//	)
//
// The process-wide provider is configured once with SetupLogger; packages obtain
// named loggers from it with GetLoggerWithName.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Standard field keys.
const (
	ComponentKey  = "component"
	ModelNameKey  = "model_name"
	OperationKey  = "operation"
	PhaseKey      = "phase"
	SamplesKey    = "samples"
	FeaturesKey   = "features"
	DurationMsKey = "duration_ms"
	PredsKey      = "predictions"
	StepKey       = "step"
	PathKey       = "path"
	ErrorKey      = "error"
)

// Standard operation and phase values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationEvaluate  = "evaluate"
	OperationTransform = "transform"
	OperationLoad      = "load"
	OperationSave      = "save"

	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhaseValidation    = "validation"
	PhasePreprocessing = "preprocessing"
)

// Logger is a leveled key/value logger.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	// With returns a child logger that adds fields to every entry.
	With(fields ...interface{}) Logger
}

// LoggerProvider hands out loggers sharing one sink and level.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}

// Level is a logging threshold.
type Level int8

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	Disabled
)

// ToLogLevel parses a level name. Unknown names map to InfoLevel.
func ToLogLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error", "fatal":
		return ErrorLevel
	case "disabled", "off", "none":
		return Disabled
	default:
		return InfoLevel
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case Disabled:
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

type zerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

// NewZerologProvider returns a provider writing human-readable lines to stderr.
func NewZerologProvider(level Level) LoggerProvider {
	return NewZerologProviderWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, level)
}

// NewZerologProviderWithWriter returns a provider writing to w. Passing a plain
// io.Writer yields JSON lines.
func NewZerologProviderWithWriter(w io.Writer, level Level) LoggerProvider {
	return &zerologProvider{
		base: zerolog.New(w).Level(level.zerolog()).With().Timestamp().Logger(),
	}
}

func (p *zerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{l: p.base}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{l: p.base.With().Str("logger", name).Logger()}
}

func (p *zerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(level.zerolog())
}

type zerologLogger struct {
	l zerolog.Logger
}

func (z *zerologLogger) Debug(msg string, fields ...interface{}) { emit(z.l.Debug(), msg, fields) }
func (z *zerologLogger) Info(msg string, fields ...interface{})  { emit(z.l.Info(), msg, fields) }
func (z *zerologLogger) Warn(msg string, fields ...interface{})  { emit(z.l.Warn(), msg, fields) }
func (z *zerologLogger) Error(msg string, fields ...interface{}) { emit(z.l.Error(), msg, fields) }

func (z *zerologLogger) With(fields ...interface{}) Logger {
	ctx := z.l.With()
	for i := 0; i < len(fields); i += 2 {
		key := fieldKey(fields[i])
		if i+1 >= len(fields) {
			ctx = ctx.Interface("extra", fields[i])
			break
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &zerologLogger{l: ctx.Logger()}
}

// emit attaches key/value pairs to ev and sends it. ev is nil when the level
// is disabled.
func emit(ev *zerolog.Event, msg string, fields []interface{}) {
	if ev == nil {
		return
	}
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			ev = ev.Interface("extra", fields[i])
			break
		}
		key := fieldKey(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

func fieldKey(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

var (
	globalMu       sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(InfoLevel)
)

// SetupLogger replaces the global provider with a console provider at level.
func SetupLogger(level string) {
	SetProvider(NewZerologProvider(ToLogLevel(level)))
}

// SetProvider replaces the global provider.
func SetProvider(p LoggerProvider) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalProvider = p
}

// GetLogger returns an unnamed logger from the global provider.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with name.
func GetLoggerWithName(name string) Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider.GetLoggerWithName(name)
}

// LogError logs err at error level with msg and optional fields.
func LogError(err error, msg string, fields ...interface{}) {
	GetLogger().Error(msg, append([]interface{}{ErrorKey, err}, fields...)...)
}
