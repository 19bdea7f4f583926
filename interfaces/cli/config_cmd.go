package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/toolgate/infrastructure/config"
)

// newConfigCmd creates the config command group.
func (a *App) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(
		a.newConfigSchemaCmd(),
		a.newConfigShowCmd(),
		a.newConfigValidateCmd(),
	)

	return cmd
}

func (a *App) newConfigSchemaCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for configuration files",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			schema, err := config.SchemaJSON()
			if err != nil {
				return fmt.Errorf("failed to generate schema: %w", err)
			}
			if output == "" {
				_, _ = fmt.Fprintln(a.stdout, schema)
				return nil
			}
			if err := os.WriteFile(output, []byte(schema+"\n"), 0o600); err != nil {
				return fmt.Errorf("failed to write schema: %w", err)
			}
			_, _ = fmt.Fprintf(a.stdout, "Schema written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the schema to a file")
	return cmd
}

func (a *App) newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, path, err := a.loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			if path != "" {
				_, _ = fmt.Fprintf(a.stdout, "# loaded from %s\n", path)
			} else {
				_, _ = fmt.Fprintln(a.stdout, "# built-in defaults")
			}
			_, _ = fmt.Fprint(a.stdout, string(data))
			return nil
		},
	}
}

func (a *App) newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the configuration loads and builds",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, path, err := a.loadConfig()
			if err != nil {
				return err
			}
			if _, err := config.NewBuilder(cfg).Build(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if path == "" {
				path = "built-in defaults"
			}
			_, _ = fmt.Fprintf(a.stdout, "configuration is valid (%s)\n", path)
			return nil
		},
	}
}
