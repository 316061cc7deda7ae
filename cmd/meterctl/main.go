package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultConfigFilename = "meterctl"
	envPrefix             = "METERCTL"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "meterctl",
		Short:        "Operate the transmitter metering log from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeConfig(cmd)
		},
	}
	rootCmd.PersistentFlags().String("config", "", "service configuration file (yaml)")
	rootCmd.PersistentFlags().String("rules", "", "rule tables file (yaml); built-in tables when empty")

	rootCmd.AddCommand(NewVSWRCommand())
	rootCmd.AddCommand(NewClassifyCommand())
	rootCmd.AddCommand(NewRulesCommand())
	rootCmd.AddCommand(NewTablesCommand())
	rootCmd.AddCommand(NewExportCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	return rootCmd
}

// initializeConfig lets meterctl.yaml and METERCTL_* variables fill any flag not set on the command line.
func initializeConfig(cmd *cobra.Command) error {
	v := viper.New()
	v.SetConfigName(defaultConfigFilename)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home + "/.config/muxmonitor")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	bindFlags(cmd, v)
	return nil
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		sectionName := fmt.Sprintf("%s.%s", cmd.Name(), f.Name)
		if f.Changed {
			return
		}
		for _, key := range []string{sectionName, f.Name} {
			if v.IsSet(key) {
				_ = cmd.Flags().Set(f.Name, fmt.Sprint(v.Get(key)))
				return
			}
		}
	})
}
