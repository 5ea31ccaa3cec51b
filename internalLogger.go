package redislog

import (
	"log"
	"os"
	"sync/atomic"
)

var internalLogger atomic.Value

func init() {
	internalLogger.Store(log.New(os.Stderr, "[redislog] ", log.LstdFlags))
}

// InternalLogger returns the Logger used to write out internal logs, where logs
// get written when something goes wrong in the logging stack itself, such as a
// record that could not be delivered to Redis.
//
// It must never be backed by a Handler from this package, since a failed
// delivery would then recurse into another delivery attempt.
func InternalLogger() *log.Logger { return internalLogger.Load().(*log.Logger) }

// SetInternalLogger makes l the internal logger.
func SetInternalLogger(l *log.Logger) {
	internalLogger.Store(l)
}
