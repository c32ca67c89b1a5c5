package main

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var dumpFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration (defaults + file + env) to stdout",
	Long: `Dump loads config the same way every other subcommand does (env >
config file > defaults) and prints the resolved Config, following
forbearing-gst's "gg config dump" command.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(configFile) > 0 {
			config.SetConfigFile(configFile)
		}
		if err := config.Init(); err != nil {
			return err
		}

		switch dumpFormat {
		case "yaml":
			out, err := yaml.Marshal(config.App)
			if err != nil {
				return errors.Wrap(err, "docxferctl config dump: marshal yaml")
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
		case "json", "":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(config.App)
		default:
			return errors.Newf("docxferctl config dump: unsupported format %q", dumpFormat)
		}
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "json", "output format (json, yaml)")
	configCmd.AddCommand(dumpCmd)
}
