package core

import (
	"log/slog"
	"sync/atomic"
)

var pkgLogger atomic.Pointer[slog.Logger]

// SetLogger sets the logger used for retry diagnostics, observer failures
// and function-call logging. A nil logger restores slog.Default().
func SetLogger(l *slog.Logger) {
	pkgLogger.Store(l)
}

func logger() *slog.Logger {
	if l := pkgLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// LogMode selects how invocations are logged.
type LogMode string

const (
	// LogOff disables function-call logging.
	LogOff LogMode = "off"
	// LogBasicText logs one line per lifecycle event.
	LogBasicText LogMode = "basic-text"
	// LogDetailedObject logs every lifecycle event with its full metadata.
	LogDetailedObject LogMode = "detailed-object"
)

// ParseLogMode converts a configuration string to a LogMode.
// Unknown values map to LogOff.
func ParseLogMode(s string) LogMode {
	switch LogMode(s) {
	case LogBasicText, LogDetailedObject:
		return LogMode(s)
	default:
		return LogOff
	}
}

// FunctionCallLogger returns the observers implementing mode on l.
func FunctionCallLogger(mode LogMode, l *slog.Logger) []Observer {
	if l == nil {
		l = logger()
	}
	switch mode {
	case LogBasicText:
		return []Observer{basicTextLogger{l: l}}
	case LogDetailedObject:
		return []Observer{detailedObjectLogger{l: l}}
	default:
		return nil
	}
}

type basicTextLogger struct {
	l *slog.Logger
}

func (b basicTextLogger) OnEvent(e Event) error {
	md := e.Metadata
	switch e.Type {
	case EventStarted:
		b.l.Info(string(md.FunctionType)+" started", "call_id", md.CallID)
	case EventFinished:
		status := ""
		if e.Result != nil {
			status = string(e.Result.Status)
		}
		b.l.Info(string(md.FunctionType)+" finished",
			"call_id", md.CallID,
			"status", status,
			"duration_ms", e.DurationMs(),
		)
	}
	return nil
}

type detailedObjectLogger struct {
	l *slog.Logger
}

func (d detailedObjectLogger) OnEvent(e Event) error {
	md := e.Metadata
	attrs := []any{
		slog.String("event", string(e.Type)),
		slog.String("function_type", string(md.FunctionType)),
		slog.String("call_id", md.CallID),
		slog.String("run_id", md.RunID),
		slog.String("session_id", md.SessionID),
		slog.String("user_id", md.UserID),
		slog.String("function_id", md.FunctionID),
		slog.Group("model",
			slog.String("provider", md.Model.Provider),
			slog.String("name", md.Model.ModelName),
		),
		slog.Any("settings", md.Settings),
		slog.Any("input", md.Input),
		slog.Time("start_timestamp", md.StartTimestamp),
	}

	if e.Type == EventFinished && e.Result != nil {
		result := []any{slog.String("status", string(e.Result.Status))}
		switch e.Result.Status {
		case StatusSuccess:
			result = append(result, slog.String("output", e.Result.Output))
		case StatusError:
			result = append(result, slog.Any("error", e.Result.Err))
		}
		attrs = append(attrs,
			slog.Time("finish_timestamp", e.FinishTimestamp),
			slog.Int64("duration_ms", e.DurationMs()),
			slog.Group("result", result...),
		)
	}

	d.l.Info("model call "+string(e.Type), attrs...)
	return nil
}
