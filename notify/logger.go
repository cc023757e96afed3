package notify

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// LoggerAdapter routes watermill logs to zerolog.
type LoggerAdapter struct {
	logger zerolog.Logger
}

// NewLogger wraps logger for watermill.
func NewLogger(logger zerolog.Logger) watermill.LoggerAdapter {
	return LoggerAdapter{logger: logger}
}

func (l LoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l LoggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.logger.Info().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l LoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l LoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.logger.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l LoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return LoggerAdapter{logger: l.logger.With().Fields(map[string]interface{}(fields)).Logger()}
}
