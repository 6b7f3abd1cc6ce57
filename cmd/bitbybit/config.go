package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bitbybit/internal/api"
	"github.com/jackzampolin/bitbybit/internal/config"
	"github.com/jackzampolin/bitbybit/internal/home"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Local configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration to ~/.bitbybit/config.yaml, or to the
path given with --config. API keys are written as ${ENV_VAR} references.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Println("Wrote", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the local configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		file := cfgFile
		if file == "" {
			h, err := home.New(homeDir)
			if err != nil {
				return err
			}
			if h.ConfigExists() {
				file = h.ConfigPath()
			}
		}
		mgr, err := config.NewManager(file, nil)
		if err != nil {
			return err
		}
		return api.Output(mgr.Get().Redacted())
	},
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	h, err := home.New(homeDir)
	if err != nil {
		return "", err
	}
	if err := h.EnsureExists(); err != nil {
		return "", err
	}
	return h.ConfigPath(), nil
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
