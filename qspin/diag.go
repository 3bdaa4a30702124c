package qspin

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// diag is the diagnostic channel. The only thing ever reported on it is node
// pool exhaustion, which signals nesting deeper than the pool was sized for;
// the burst sampler keeps a spinning fallback from flooding the log.
var diag = zerolog.New(os.Stderr).With().Timestamp().Logger().
	Sample(&zerolog.BurstSampler{Burst: 1, Period: time.Second})

// SetLogger replaces the diagnostic logger. Call before any lock is used;
// the logger is not swapped atomically.
func SetLogger(l zerolog.Logger) { diag = l }

func warnPoolExhausted(proc int) {
	diag.Warn().
		Int("proc", proc).
		Msg("qspin: queue node pool exhausted, falling back to unfair spinning")
}
