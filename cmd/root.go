/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/Wayline/internal/config"
	"github.com/josephgoksu/Wayline/internal/logger"
	"github.com/josephgoksu/Wayline/internal/ui"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// version is set at build time.
	version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "wayline",
	Short: "Keep a goal-ordered task graph coherent",
	Long: `Wayline orders your tasks toward a goal, finds the steps the plan is
missing, proposes tasks to bridge them, and lets free-text reflections
reshape priorities.

Everything is stored locally in SQLite. AI assistance is optional: without a
configured provider every step runs on its deterministic fallback.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup(isVerbose(), os.Stderr)
		logger.SetCommand(cmd.CommandPath())
		if dir, err := config.GetDataDir(); err == nil {
			logger.SetBasePath(dir)
		}
		if !ui.IsInteractive() {
			lipgloss.SetColorProfile(termenv.Ascii)
		}
	},
}

// Execute runs the root command. Called once from main.
func Execute(v string) {
	if v != "" {
		version = v
	}
	rootCmd.Version = version
	logger.SetVersion(version)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func init() {
	cobra.OnInitialize(InitConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.wayline/.wayline.yaml or $HOME/.wayline.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("json", false, "print machine-readable JSON")
	rootCmd.PersistentFlags().String("user", "", "act as this user (default from user.id)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user.id", rootCmd.PersistentFlags().Lookup("user"))
}
