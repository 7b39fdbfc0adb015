package quantout

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// OpenRunLog creates outputDir/logs/salmon_quant.log and writes a
// startup banner recording when the run began and the invocation that
// started it. Runtime diagnostics themselves still go through
// grailbio/base/log to stderr, the way every other package in this
// module logs; this file is the run's on-disk artifact, not a redirect
// target for that logger.
func OpenRunLog(outputDir, commandLine string) (*os.File, error) {
	dir := filepath.Join(outputDir, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "quantout: creating %s", dir)
	}
	path := filepath.Join(dir, "salmon_quant.log")
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "quantout: creating %s", path)
	}
	fmt.Fprintf(f, "[%s] starting run\ncommand: %s\n", time.Now().Format(time.RFC3339), commandLine)
	return f, nil
}
