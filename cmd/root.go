// Package cmd implements the libos binary's cobra command tree, grounded
// on the teacher's cmd/root.go: a persistent --config-file flag, flags
// bound through cfg.BindFlags, and cobra.OnInitialize(initConfig) loading
// a config file (if given) before viper.Unmarshal populates the shared
// Config value every subcommand reads.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/golibos/libos/cfg"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error

	// Config is the fully resolved configuration, populated by initConfig
	// before any subcommand's RunE runs.
	Config cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "libos",
	Short: "Run a guest program under the LibOS core",
	Long: `libos boots the LibOS core (scheduler, page cache, VFS, process
model) against a configuration file and an entry-point guest binary,
analogous to how gcsfuse mounts a bucket: "libos run <entry-point>" starts
the core instead of mounting a file system.`,
}

// Execute runs the command tree, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to the YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(runCmd)
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&Config)
		return
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&Config)
}

// checkInit surfaces any error deferred from init()/initConfig(), the same
// three-error-variable pattern the teacher's rootCmd.RunE checks before
// doing any work.
func checkInit() error {
	if bindErr != nil {
		return bindErr
	}
	if configFileErr != nil {
		return configFileErr
	}
	if unmarshalErr != nil {
		return unmarshalErr
	}
	return nil
}
