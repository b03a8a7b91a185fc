package global

import (
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// global Log
var Logger log.Logger

func init() {
	w := log.NewSyncWriter(os.Stderr)
	Logger = log.With(log.NewLogfmtLogger(w), "ts", log.DefaultTimestampUTC)
}

// ConfigureLogger filters out debug messages unless the server runs in debug mode
func ConfigureLogger(mode string) {
	if mode == "debug" {
		Logger = level.NewFilter(Logger, level.AllowDebug())
		return
	}
	Logger = level.NewFilter(Logger, level.AllowInfo())
}
