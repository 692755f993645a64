package pipeline

import "github.com/sekaiacg/apkforge/internal/logging"

// Logger is the structured logger threaded through a run. It is the shared
// logging interface; the alias keeps Runner wiring self-contained.
type Logger = logging.Logger

// defaultLogger returns the no-op logger used when a Runner has none set.
func defaultLogger() Logger {
	return logging.Noop()
}
