package cmd

import (
	"strings"

	"github.com/FAIRDataPipeline/data-registry/config"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "data-registry",
	Short: "FAIR data pipeline registry",
	Long: `Serves provenance reports and RO-Crates for the data products and code runs
recorded in a FAIR data pipeline registry.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: "+config.DefaultConfigPath+")")
}

// SetVersion sets the version string shown by --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func Execute() error {
	return rootCmd.Execute()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	path := strings.TrimSpace(cfgFile)
	if path == "" {
		path = config.DefaultConfigPath
	}
	if err := config.LoadConfig(path); err != nil {
		return err
	}
	config.InitLogger()
	return nil
}
