package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/golibos/libos/internal/blockdev"
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/hostbridge"
	"github.com/golibos/libos/internal/logger"
	"github.com/golibos/libos/internal/metrics"
	"github.com/golibos/libos/internal/rt"
	"github.com/golibos/libos/internal/vfs"
	"github.com/golibos/libos/internal/vfs/sfs"
)

var runLog = logger.New("cmd")

var runCmd = &cobra.Command{
	Use:   "run <entry-point>",
	Short: "Boot the LibOS core against an entry-point guest binary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkInit(); err != nil {
			return err
		}
		return run(args[0])
	},
}

func run(entryPoint string) error {
	if err := validateConfig(entryPoint); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Format:     parseLogFormat(Config.Logging.Format),
		Level:      Config.Logging.Level,
		FilePath:   Config.Logging.Path,
		MaxSizeMB:  Config.Logging.MaxSizeMB,
		MaxBackups: Config.Logging.MaxBackups,
	}); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	if Config.Debug.ExitOnInvariantViolation {
		errutil.EnableInvariantsCheck()
	}

	reg, err := metrics.NewRegistry()
	if err != nil {
		return fmt.Errorf("starting metrics registry: %w", err)
	}
	defer reg.Shutdown(context.Background())

	sched, err := rt.New(Config.Scheduler.Parallelism, reg)
	if err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Shutdown()

	bridge := hostbridge.NewSimulated()

	rootFS, err := buildRootFS(bridge)
	if err != nil {
		return fmt.Errorf("building root file system: %w", err)
	}
	_ = vfs.NewVFS(rootFS)

	runLog.Info("libos core started", "entry_point", entryPoint, "parallelism", sched.Parallelism())

	// Loading and running entry_point as a guest process needs an ELF
	// binary loader this package doesn't have yet (see DESIGN.md's
	// internal/syscall Open Questions); this boot path stands the core up
	// and waits for a termination signal rather than faking execution.
	waitForSignal()
	runLog.Info("libos core shutting down")
	return nil
}

// buildRootFS formats a fresh root SFS volume on the first configured
// disk (or a 16MB in-memory disk if none is configured — persisted state
// loading is a separate, not-yet-built concern, per spec.md §6's
// "Persisted state layout").
func buildRootFS(bridge hostbridge.Bridge) (vfs.FileSystem, error) {
	var dev blockdev.Device
	if len(Config.Disks) == 0 {
		dev = blockdev.NewMemDisk(4096, 64)
	} else {
		d := Config.Disks[0]
		maxInFlight := d.MaxInFlight
		if maxInFlight <= 0 {
			maxInFlight = 64
		}
		if d.HostPath != "" {
			dev = blockdev.NewHostDisk(bridge, d.HostPath, d.TotalBlocks)
		} else {
			dev = blockdev.NewMemDisk(d.TotalBlocks, maxInFlight)
		}
	}
	return sfs.Format(dev, "sfs")
}

func parseLogFormat(s string) logger.Format {
	if s == "json" {
		return logger.FormatJSON
	}
	return logger.FormatText
}

func validateConfig(entryPoint string) error {
	if Config.Scheduler.Parallelism < 1 {
		return errutil.New(errutil.EINVAL, "parallelism must be >= 1")
	}
	permitted := len(Config.EntryPoints) == 0
	for _, p := range Config.EntryPoints {
		if p == entryPoint {
			permitted = true
			break
		}
	}
	if !permitted {
		return errutil.New(errutil.EACCES, "entry point %s is not in entry_points", entryPoint)
	}
	return nil
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
