package pagecms

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a logger writing to stdout at level, as text with full
// timestamps or as JSON. Unknown levels fall back to info.
func NewLogger(level, format string) *logrus.Logger {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	log.SetOutput(os.Stdout)
	return log
}
