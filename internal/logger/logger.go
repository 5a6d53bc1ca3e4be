// Package logger holds the ledger-wide zap singleton. Services and the
// workflow coordinator log through Get with structured key/value pairs.
package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Init configures the process logger once. "production" selects the JSON
// encoder; every other environment (development, test) gets the console
// encoder.
func Init(env string) {
	once.Do(func() {
		var base *zap.Logger
		var err error

		if env == "production" {
			base, err = zap.NewProduction()
		} else {
			base, err = zap.NewDevelopment()
		}

		if err != nil {
			base = zap.NewNop()
		}

		sugar = base.Sugar()
	})
}

// Get returns the process logger, initializing a development logger if Init
// was never called.
func Get() *zap.SugaredLogger {
	if sugar == nil {
		Init("development")
	}
	return sugar
}

// Sync flushes buffered entries before exit.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
