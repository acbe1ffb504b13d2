package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

// pgxLogger forwards pgx tracelog events to zerolog under component=pgx.
type pgxLogger struct {
	logger zerolog.Logger
}

func newPgxLogger(logger zerolog.Logger) *pgxLogger {
	return &pgxLogger{logger: logger.With().Str("component", "pgx").Logger()}
}

// Log implements tracelog.Logger. SQL text is only attached at trace level; bound
// arguments are reduced to their count so filter values stay out of the logs.
func (l *pgxLogger) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	event := l.event(level)
	if event == nil {
		return
	}

	for k, v := range data {
		switch k {
		case "sql":
			if level == tracelog.LogLevelTrace {
				event = event.Interface("sql", v)
			}
		case "args":
			if args, ok := v.([]any); ok {
				event = event.Int("args", len(args))
			}
		case "time":
			if d, ok := v.(time.Duration); ok {
				event = event.Dur("took", d)
			}
		case "err":
			if err, ok := v.(error); ok {
				event = event.Err(err)
			}
		default:
			event = event.Interface(k, v)
		}
	}
	event.Msg(msg)
}

func (l *pgxLogger) event(level tracelog.LogLevel) *zerolog.Event {
	switch level {
	case tracelog.LogLevelNone:
		return nil
	case tracelog.LogLevelTrace:
		return l.logger.Trace()
	case tracelog.LogLevelDebug:
		return l.logger.Debug()
	case tracelog.LogLevelInfo:
		return l.logger.Info()
	case tracelog.LogLevelWarn:
		return l.logger.Warn()
	case tracelog.LogLevelError:
		return l.logger.Error()
	default:
		return l.logger.Info().Str("pgx_log_level", level.String())
	}
}
