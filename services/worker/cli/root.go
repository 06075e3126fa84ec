package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NooberThanYall/fixo-crm/internal/bootstrap"
	"github.com/NooberThanYall/fixo-crm/internal/version"
)

const serviceName = "worker"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "worker",
	Short:        "fixo worker: executes drafts confirmed asynchronously",
	SilenceUsage: true,
}

// Execute is the entry point called from cmd/worker/main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file path (default: ./worker.yaml)")
	pf.String("log-level", "info", "log level: debug | info | warn | error")
	pf.String("log-file", "", "also write logs to this file, rotated")
	bootstrap.BindFlag(viper.GetViper(), "log_level", pf, "log-level")
	bootstrap.BindFlag(viper.GetViper(), "log_file", pf, "log-file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(bootstrap.NewInitCmd(&cfgFile, serviceName, defaultWorkerYAML))
	rootCmd.AddCommand(bootstrap.NewVersionCmd(serviceName, version.String))
}

func initConfig() {
	if err := bootstrap.ReadConfig(viper.GetViper(), cfgFile, serviceName); err != nil {
		fmt.Fprintln(os.Stderr, "error reading config file:", err)
		os.Exit(1)
	}
}
