// Package common provides the logging primitive shared across the
// rules engine's packages and its demonstration CLI: a global logrus
// logger wired to an OutputSplitter so that error-level entries reach
// stderr while everything else goes to stdout, matching how container
// orchestrators and process supervisors expect the two streams to be
// used.
//
// Every package that logs (dataservice's retry loop, the optional
// Redis-backed request cache, the CLI's config loader) logs through
// the package-level Logger rather than constructing its own logrus
// instance, so output routing and formatting stay consistent across
// the whole module.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter is an io.Writer that routes logrus's already-formatted
// output to stderr for error-level entries and stdout for everything
// else, based on a substring check against the formatted line rather
// than inspecting the logrus.Entry directly. It recognises both the text
// formatter's level=error and the JSON formatter's "level":"error".
type OutputSplitter struct{}

// Write implements io.Writer. It never buffers or mutates p; it only
// decides which OS stream receives it.
func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the process-wide logger. cmd/rulesengine's config loader,
// dataservice's HTTP dispatcher, and cache/rediscache all log through
// this instance rather than creating their own, so a caller that wants
// JSON output or a different level only has to reconfigure it once:
//
//	common.Logger.SetFormatter(&logrus.JSONFormatter{})
//	common.Logger.SetLevel(logrus.InfoLevel)
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
