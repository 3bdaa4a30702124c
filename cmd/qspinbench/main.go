// Command qspinbench runs an ever growing table of contention scenarios
// against the lock implementations in this module and reports throughput.
//
// Usage:
//
//	qspinbench                 run every scenario
//	qspinbench list [fragment] list scenarios, optionally filtered
//	qspinbench 3 7             run scenarios by number
//	qspinbench qspin           run scenarios matching a name fragment
package main

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-qspin/alock"
	"github.com/ahrav/go-qspin/mcs"
	"github.com/ahrav/go-qspin/qspin"
	"github.com/ahrav/go-qspin/ticket"
)

var (
	verbose    = flag.BoolP("verbose", "v", false, "log per-worker detail")
	workers    = flag.IntP("goroutines", "g", 8, "contending goroutines for the contended scenarios")
	duration   = flag.DurationP("duration", "d", time.Second, "how long to run each scenario")
	iterations = flag.IntP("iters", "i", 0, "fixed iteration count per worker; 0 means run for --duration")
)

type config struct {
	workers int
	dur     time.Duration
	iters   int
}

type scenario struct {
	name string
	desc string
	run  func(cfg config) uint64
}

var scenarios = []scenario{
	{
		name: "qspin-uncontended",
		desc: "single goroutine, compact protocol fast path",
		run: func(cfg config) uint64 {
			cfg.workers = 1
			l := qspin.New()
			return fanout(cfg, func() func() uint64 { return qspinWorker(l, cfg) })
		},
	},
	{
		name: "qspin-two-contenders",
		desc: "two goroutines, compact protocol pending fast lane",
		run: func(cfg config) uint64 {
			cfg.workers = 2
			l := qspin.New()
			return fanout(cfg, func() func() uint64 { return qspinWorker(l, cfg) })
		},
	},
	{
		name: "qspin-compact",
		desc: "contended, compact protocol (pending byte + queue)",
		run: func(cfg config) uint64 {
			l := qspin.New()
			return fanout(cfg, func() func() uint64 { return qspinWorker(l, cfg) })
		},
	},
	{
		name: "qspin-generic",
		desc: "contended, generic protocol (full-word exchange)",
		run: func(cfg config) uint64 {
			l := qspin.NewGeneric()
			return fanout(cfg, func() func() uint64 { return qspinWorker(l, cfg) })
		},
	},
	{
		name: "qspin-trylock",
		desc: "contended TryLock mix: acquire when possible, never wait",
		run: func(cfg config) uint64 {
			l := qspin.New()
			return fanout(cfg, func() func() uint64 {
				return func() uint64 {
					var ops uint64
					if cfg.iters > 0 {
						for range cfg.iters {
							if l.TryLock() {
								ops++
								l.Unlock()
							}
						}
						return ops
					}
					deadline := time.Now().Add(cfg.dur)
					for time.Now().Before(deadline) {
						if l.TryLock() {
							ops++
							l.Unlock()
						}
					}
					return ops
				}
			})
		},
	},
	{
		name: "ticket",
		desc: "contended ticket lock baseline",
		run: func(cfg config) uint64 {
			l := ticket.NewLock()
			return fanout(cfg, func() func() uint64 {
				return lockerWorker(l.Lock, l.Unlock, cfg)
			})
		},
	},
	{
		name: "mcs",
		desc: "contended pointer MCS lock baseline",
		run: func(cfg config) uint64 {
			l := mcs.NewLock()
			return fanout(cfg, func() func() uint64 {
				node := &mcs.QNode{}
				return lockerWorker(func() { l.Lock(node) }, func() { l.Unlock(node) }, cfg)
			})
		},
	},
	{
		name: "alock",
		desc: "contended array lock baseline",
		run: func(cfg config) uint64 {
			l := alock.NewLock(uint32(cfg.workers))
			return fanout(cfg, func() func() uint64 {
				var slot uint32
				return lockerWorker(func() { slot = l.Lock() }, func() { l.Unlock(slot) }, cfg)
			})
		},
	},
	{
		name: "nested",
		desc: "two locks taken nested under contention",
		run: func(cfg config) uint64 {
			outer, inner := qspin.New(), qspin.New()
			return fanout(cfg, func() func() uint64 {
				return lockerWorker(
					func() { outer.Lock(); inner.Lock() },
					func() { inner.Unlock(); outer.Unlock() },
					cfg)
			})
		},
	},
}

// qspinWorker is the per-goroutine loop for a qspin lock. The critical
// section must stay free of anything that can block: a pinned goroutine
// cannot enter the scheduler.
func qspinWorker(l *qspin.Lock, cfg config) func() uint64 {
	return lockerWorker(l.Lock, l.Unlock, cfg)
}

func lockerWorker(lock, unlock func(), cfg config) func() uint64 {
	return func() uint64 {
		var ops uint64
		if cfg.iters > 0 {
			for range cfg.iters {
				lock()
				ops++
				unlock()
			}
			return ops
		}
		deadline := time.Now().Add(cfg.dur)
		for time.Now().Before(deadline) {
			lock()
			ops++
			unlock()
		}
		return ops
	}
}

// fanout runs cfg.workers copies of the worker loop, each built fresh so
// per-goroutine state (MCS nodes, array-lock slots) stays private.
func fanout(cfg config, mkWorker func() func() uint64) uint64 {
	var total atomic.Uint64
	var g errgroup.Group
	for i := 0; i < cfg.workers; i++ {
		w := mkWorker()
		g.Go(func() error {
			total.Add(w())
			return nil
		})
	}
	_ = g.Wait() // workers return no errors
	return total.Load()
}

// matches reports whether scenario i was selected: no arguments selects
// everything, a number selects by position, anything else by name fragment.
func matches(i int, args []string) bool {
	if len(args) == 0 {
		return true
	}
	for _, arg := range args {
		if nr, err := strconv.Atoi(arg); err == nil {
			if nr == i+1 {
				return true
			}
			continue
		}
		if strings.Contains(scenarios[i].name, arg) {
			return true
		}
	}
	return false
}

func list(log zerolog.Logger, args []string) {
	for i, s := range scenarios {
		if len(args) > 0 && !strings.Contains(s.name, args[0]) {
			continue
		}
		log.Info().Int("nr", i+1).Str("desc", s.desc).Msg(s.name)
	}
}

func main() {
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	args := flag.Args()
	if len(args) >= 1 && args[0] == "list" {
		list(log, args[1:])
		return
	}

	cfg := config{workers: *workers, dur: *duration, iters: *iterations}
	for i, s := range scenarios {
		if !matches(i, args) {
			continue
		}
		log.Debug().Str("scenario", s.name).Msg("start")
		start := time.Now()
		ops := s.run(cfg)
		elapsed := time.Since(start)
		log.Info().
			Int("nr", i+1).
			Str("scenario", s.name).
			Uint64("ops", ops).
			Float64("ops_per_sec", float64(ops)/elapsed.Seconds()).
			Dur("elapsed", elapsed).
			Msg("done")
	}
}
