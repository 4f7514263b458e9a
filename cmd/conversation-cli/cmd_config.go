package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"workify/services/conversation-api/internal/config"
)

const redacted = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
	Long:  `Validate and inspect the configuration the server would start with.`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the environment configuration",
	RunE:  runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configShowCmd.Flags().String("format", "yaml", "Output format: yaml, json")
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: storage=%s directory=%s broker=%s auth=%t\n",
		cfg.StorageDriver, cfg.DirectoryMode, cfg.RealtimeBroker, cfg.AuthEnabled)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")

	view := redact(*cfg)
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(view)
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// redact hides credentials embedded in the configuration.
func redact(cfg config.Config) config.Config {
	cfg.DatabaseURL = redactURL(cfg.DatabaseURL)
	cfg.RedisURL = redactURL(cfg.RedisURL)
	cfg.NATSURL = redactURL(cfg.NATSURL)
	if cfg.InternalAPIToken != "" {
		cfg.InternalAPIToken = redacted
	}
	return cfg
}

func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	return u.String()
}
