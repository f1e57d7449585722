// Package logging builds the structured logrus logger every entry
// point shares, the way the teacher's internal/mcp/logging package
// turns a LoggingConfig into a configured *logrus.Logger (level
// parsing, JSON vs. text formatter) rather than leaving every
// collaborator to call logrus.New on its own.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinlab/amrclassify/internal/domain"
)

// New builds a *logrus.Logger from an EngineConfig's LoggingConfig.
// An unrecognized level falls back to Info rather than failing
// startup over a typo in a config file.
func New(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	return logger
}
