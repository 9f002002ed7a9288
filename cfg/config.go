// Package cfg defines the single configuration struct this LibOS core
// recognizes at start, per spec.md §6's "Configuration" list, grounded
// line-for-line on the teacher's cfg/config.go shape: a yaml-tagged struct
// plus a BindFlags that wires every field through viper.BindPFlag so a
// value can come from a flag, a config file, or viper's own defaults, in
// that order of precedence.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full set of options spec.md §6 names.
type Config struct {
	Debug DebugConfig `yaml:"debug"`

	VM VMConfig `yaml:"vm"`

	Scheduler SchedulerConfig `yaml:"scheduler"`

	PageCache PageCacheConfig `yaml:"page-cache"`

	Mounts []MountEntry `yaml:"mount"`

	Disks []DiskEntry `yaml:"disks"`

	UntrustedUnixSocks []UnixSockEntry `yaml:"untrusted-unix-socks"`

	EntryPoints []string `yaml:"entry-points"`

	ResourceLimits []ResourceLimitEntry `yaml:"resource-limits"`

	Logging LoggingConfig `yaml:"logging"`
}

// DebugConfig mirrors the teacher's debug sub-struct, extended with the
// invariant-checking knob spec.md's error-handling design calls for
// (internal/errutil.EnableInvariantsCheck).
type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

// VMConfig covers spec.md §6's user_space_init_size/user_space_max_size.
type VMConfig struct {
	UserSpaceInitSize uint64 `yaml:"user-space-init-size"`

	UserSpaceMaxSize uint64 `yaml:"user-space-max-size"`
}

// SchedulerConfig covers spec.md §6's parallelism.
type SchedulerConfig struct {
	Parallelism int `yaml:"parallelism"`
}

// PageCacheConfig covers spec.md §6's page_cache_high_water/low_water/
// flush_batch.
type PageCacheConfig struct {
	HighWaterPages int `yaml:"high-water-pages"`

	LowWaterPages int `yaml:"low-water-pages"`

	FlushBatchPages int `yaml:"flush-batch-pages"`
}

// MountEntry is one (src, target, fs_type, options, key?) mount directive.
type MountEntry struct {
	Source  string `yaml:"source"`
	Target  string `yaml:"target"`
	FSType  string `yaml:"fs-type"` // "sfs", "jindisk", "devfs", "procfs"
	Options string `yaml:"options"`
	Key     string `yaml:"key"` // hex-encoded, empty for unencrypted
}

// DiskEntry is one block-device descriptor: a host-backed file or an
// in-memory disk sized in blocks, per spec.md §6's "disks" option.
type DiskEntry struct {
	Name         string `yaml:"name"`
	HostPath     string `yaml:"host-path"` // empty selects an in-memory disk
	TotalBlocks  uint64 `yaml:"total-blocks"`
	MaxInFlight  int64  `yaml:"max-in-flight"`
}

// UnixSockEntry maps a LibOS-visible unix socket path to a host path, per
// spec.md §6's untrusted_unix_socks.
type UnixSockEntry struct {
	LibOSPath string `yaml:"libos-path"`
	HostPath  string `yaml:"host-path"`
}

// ResourceLimitEntry is one per-resource soft/hard limit pair.
type ResourceLimitEntry struct {
	Resource string `yaml:"resource"`
	Soft     uint64 `yaml:"soft"`
	Hard     uint64 `yaml:"hard"`
}

// LoggingConfig covers the logging ambient stack (internal/logger.Config).
type LoggingConfig struct {
	Format  string `yaml:"format"` // "text" or "json"
	Level   string `yaml:"level"`  // "trace", "debug", "info", "warning", "error"
	Path    string `yaml:"path"`   // empty means stderr

	MaxSizeMB  int `yaml:"max-size-mb"`
	MaxBackups int `yaml:"max-backups"`
}

// BindFlags registers every Config field as a pflag and binds it into
// viper under the matching dotted key, the same pattern as the teacher's
// generated cfg/config.go. Fields with no natural scalar flag (Mounts,
// Disks, UntrustedUnixSocks, ResourceLimits) are config-file-only, per the
// teacher's own precedent of leaving list-shaped settings (e.g. its
// `only-dir`) out of BindFlags.
func BindFlags(flagSet *pflag.FlagSet) error {
	bind := func(key string, name string) error {
		return viper.BindPFlag(key, flagSet.Lookup(name))
	}

	flagSet.BoolP("debug-invariants", "", false, "Exit when internal invariants are violated.")
	if err := bind("debug.exit-on-invariant-violation", "debug-invariants"); err != nil {
		return err
	}

	flagSet.BoolP("debug-mutex", "", false, "Log when a mutex is held too long.")
	if err := bind("debug.log-mutex", "debug-mutex"); err != nil {
		return err
	}

	flagSet.Uint64P("user-space-init-size", "", 64<<20, "Initial size of the process-visible user VM, in bytes.")
	if err := bind("vm.user-space-init-size", "user-space-init-size"); err != nil {
		return err
	}

	flagSet.Uint64P("user-space-max-size", "", 1<<30, "Maximum size of the process-visible user VM, in bytes.")
	if err := bind("vm.user-space-max-size", "user-space-max-size"); err != nil {
		return err
	}

	flagSet.IntP("parallelism", "", 1, "vCPU count.")
	if err := bind("scheduler.parallelism", "parallelism"); err != nil {
		return err
	}

	flagSet.IntP("page-cache-high-water", "", 1024, "Page cache eviction high-water mark, in pages.")
	if err := bind("page-cache.high-water-pages", "page-cache-high-water"); err != nil {
		return err
	}

	flagSet.IntP("page-cache-low-water", "", 768, "Page cache eviction low-water mark, in pages.")
	if err := bind("page-cache.low-water-pages", "page-cache-low-water"); err != nil {
		return err
	}

	flagSet.IntP("page-cache-flush-batch", "", 32, "Flusher batch size, in pages.")
	if err := bind("page-cache.flush-batch-pages", "page-cache-flush-batch"); err != nil {
		return err
	}

	flagSet.StringSliceP("entry-points", "", nil, "Absolute paths permitted as the first executable.")
	if err := bind("entry-points", "entry-points"); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log encoding: text or json.")
	if err := bind("logging.format", "log-format"); err != nil {
		return err
	}

	flagSet.StringP("log-level", "", "info", "Log level: trace, debug, info, warning, error.")
	if err := bind("logging.level", "log-level"); err != nil {
		return err
	}

	flagSet.StringP("log-path", "", "", "Log file path; empty logs to stderr.")
	if err := bind("logging.path", "log-path"); err != nil {
		return err
	}

	return nil
}
