// Command devring-watch is a minimal demonstration host: it builds a
// Context with no subsystem filter, logs every device event, and registers
// one end of an os.Pipe as a Resource through AddDevice. It submits no I/O
// against the pipe, so no IOCompletion is produced for it.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/behrlich/go-devring"
	"github.com/behrlich/go-devring/internal/logging"
)

type pipeResource struct {
	f *os.File
}

func (p pipeResource) Fd() int { return int(p.f.Fd()) }

func main() {
	ioEntries := flag.Uint("io-entries", 16, "submission queue entries reserved for caller I/O")
	subsystem := flag.String("subsystem", "", "restrict to one subsystem (default: all)")
	flag.Parse()

	logger := logging.Default()

	builder := devring.NewBuilder[pipeResource](uint32(*ioEntries))
	if *subsystem != "" {
		builder.MatchSubsystems(*subsystem)
	}

	var bufID uint16
	ctx, err := builder.Build(&bufID)
	if err != nil {
		logger.Error("failed to build context", "error", err)
		os.Exit(1)
	}
	defer ctx.Close()

	r, w, err := os.Pipe()
	if err != nil {
		logger.Error("failed to open demo pipe", "error", err)
		os.Exit(1)
	}
	defer w.Close()
	defer r.Close()

	if _, err := ctx.AddDevice("demo-pipe", pipeResource{f: r}); err != nil {
		logger.Error("failed to register demo pipe", "error", err)
		os.Exit(1)
	}

	logger.Info("watching for device hot-plug events", "buffer_group", bufID)

	for {
		ev, err := ctx.Step()
		if err != nil {
			logger.Error("step failed", "error", err)
			continue
		}
		if ev == nil {
			if fatal := ctx.LastFatalError(); fatal != nil {
				logger.Error("context entered a fatal state", "error", fatal)
				os.Exit(1)
			}
			// Step never blocks; back off briefly rather than spinning the CPU.
			time.Sleep(time.Millisecond)
			continue
		}

		switch e := ev.(type) {
		case devring.DeviceAdded:
			logger.Info("device added", "syspath", e.Device.Syspath, "subsystem", e.Device.Subsystem)
		case devring.DeviceRemoved:
			logger.Info("device removed", "path", e.Device.Path)
		case devring.IOCompletion:
			logger.Info("io completion", "handle", e.Handle, "ok", e.Outcome.OK())
		}
	}
}
