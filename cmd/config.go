package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  "Renders the merged configuration (defaults, config file, environment) as YAML. Credentials are redacted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := *cfg
		if c.Store.DatabaseURL != "" {
			c.Store.DatabaseURL = "[redacted]"
		}
		if c.Notify.Email.ClientSecret != "" {
			c.Notify.Email.ClientSecret = "[redacted]"
		}

		out, err := yaml.Marshal(c)
		if err != nil {
			return eris.Wrap(err, "config: marshal")
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
