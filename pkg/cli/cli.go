// Package cli is the command line of picobot.
//
//	picobot run [--shell]     run the firmware on the host
//	picobot shell [CMD...]    operate a device over its link
//	picobot version
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/robotalks/picobot/pkg/app"
	"github.com/robotalks/picobot/pkg/config"
	"github.com/robotalks/picobot/pkg/terminal"
)

// DefaultBrokerURL is used by the shell when no telemetry URL is configured.
const DefaultBrokerURL = "mqtt://localhost:1883/picobot/"

// BuildCLI creates the root command.
func BuildCLI() *cobra.Command {
	conf := config.NewConfig()
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "picobot",
		Short:         "Cooperative firmware for a small sensing robot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// glog complains unless the standard flags are parsed.
			flag.CommandLine.Parse(nil)
			if configFile != "" {
				return conf.LoadFile(configFile, cmd.Flags())
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	conf.SetupFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(buildRunCommand(conf))
	rootCmd.AddCommand(buildShellCommand(conf))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), app.Version)
		},
	})
	return rootCmd
}

func buildRunCommand(conf *config.Config) *cobra.Command {
	var withShell bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the firmware",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(conf, app.Options{})
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if !withShell {
				return a.Run(ctx)
			}
			errCh := make(chan error, 1)
			go func() {
				errCh <- a.Run(ctx)
			}()
			sh := terminal.NewShell().Use(conf.ID(), a.Mailbox.Submit)
			sh.Run()
			cancel()
			return <-errCh
		},
	}
	cmd.Flags().BoolVar(&withShell, "shell", false, "Operate the device from an interactive shell")
	return cmd
}

func buildShellCommand(conf *config.Config) *cobra.Command {
	var (
		target     string
		outputJSON bool
		evalOnly   bool
	)
	cmd := &cobra.Command{
		Use:   "shell [COMMAND...]",
		Short: "Operate a device over MQTT or a serial port",
		RunE: func(cmd *cobra.Command, args []string) error {
			sh := terminal.NewShell()
			sh.OutputJSON, sh.Interactive = outputJSON, !evalOnly
			sh.BrokerURL = conf.Telemetry.URL
			if sh.BrokerURL == "" {
				sh.BrokerURL = DefaultBrokerURL
			}
			if target != "" {
				if err := sh.Connect(target); err != nil {
					return fmt.Errorf("connect %q failed: %w", target, err)
				}
			}
			return sh.Run(args...)
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "Device ID on the broker, or serial:///dev/tty?baud=N")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print output in JSON")
	cmd.Flags().BoolVarP(&evalOnly, "eval", "e", false, "Evaluation only, no interactive shell")
	return cmd
}

// Main is a helper to provide a single call in main.
func Main() {
	defer glog.Flush()
	if err := BuildCLI().Execute(); err != nil {
		glog.Error(err)
		fmt.Fprintln(os.Stderr, err)
		glog.Flush()
		os.Exit(1)
	}
}
