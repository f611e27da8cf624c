// iocd runs a declarative signal graph: iocd <config>, where <config> is
// the graph file's name without its extension (<config>.yml or
// <config>.yaml is loaded from the working directory). Exit code 0 on
// clean shutdown, non-zero on parse or build failure.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"iocgo/internal/config"
	"iocgo/internal/graph"
	"iocgo/internal/hal"
	"iocgo/internal/ioclog"
	"iocgo/internal/module"
	"iocgo/internal/runtime"
)

var graceMs int64

var rootCmd = &cobra.Command{
	Use:          "iocd <config>",
	Short:        "Declarative dataflow runtime for embedded control loops",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.Flags().Int64Var(&graceMs, "grace-ms", 5000,
		"shutdown grace period in milliseconds")
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
}

func findConfigFile(name string) (string, error) {
	for _, ext := range []string{".yml", ".yaml"} {
		path := name + ext
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no config file %s.yml or %s.yaml found", name, name)
}

func run(ctx context.Context, name string) error {
	log := ioclog.For("main")

	path, err := findConfigFile(name)
	if err != nil {
		return err
	}
	g, err := config.Load(path)
	if err != nil {
		return err
	}
	log.WithField("name", g.Metadata.Name).
		WithField("description", g.Metadata.Description).
		Info("starting graph")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := module.Deps{
		I2C:  hal.NewSimI2CFactory(),
		Pins: hal.NewSimPinFactory(),
		PWM:  hal.NewSimPWMFactory(),
	}
	built, err := graph.Build(ctx, g, deps)
	if err != nil {
		return err
	}

	return runtime.Supervise(ctx, built.Dones(), time.Duration(graceMs)*time.Millisecond)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		ioclog.For("main").WithError(err).Error("exiting")
		os.Exit(1)
	}
}
