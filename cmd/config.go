/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/Wayline/internal/config"
	"github.com/josephgoksu/Wayline/internal/ui"
)

const envPrefix = "WAYLINE"

// secretKeys are masked by `config list`.
var secretKeys = map[string]bool{
	"llm.apikey":       true,
	"telemetry.apikey": true,
}

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// A project-local ./.wayline directory wins over the home config.
		if _, err := os.Stat(config.ConfigFileName); err == nil {
			viper.AddConfigPath(config.ConfigFileName)
		}
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(config.ConfigFileName)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// Defaults and environment only.
		case cfgFile != "" && errors.Is(err, os.ErrNotExist):
			fmt.Fprintln(os.Stderr, "Error: specified config file not found:", cfgFile)
		default:
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
		}
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change settings",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a setting to the config file",
	Long: `Write a setting to the config file in use, or to $HOME/.wayline.yaml when
no config file was found.

Keys: ` + strings.Join(config.Keys(), ", "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.ConfigFileUsed()
		if path == "" {
			var err error
			if path, err = config.GlobalConfigPath(); err != nil {
				return fmt.Errorf("locate config file: %w", err)
			}
		}
		if err := config.SetValue(path, args[0], args[1]); err != nil {
			return err
		}
		if isJSON() {
			return printJSON(map[string]string{"key": args[0], "value": args[1], "file": path})
		}
		fmt.Printf("%s %s = %s (%s)\n", ui.Icon("✓", ui.StyleSuccess), args[0], args[1], path)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := effectiveSettings()
		if isJSON() {
			return printJSON(settings)
		}
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Println(ui.StyleSubtle.Render("config file: " + used))
		}
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		t := &ui.Table{Headers: []string{"Key", "Value"}, MaxWidth: 60}
		for _, k := range keys {
			t.Rows = append(t.Rows, []string{k, fmt.Sprint(settings[k])})
		}
		fmt.Print(t.Render())
		return nil
	},
}

func effectiveSettings() map[string]any {
	out := map[string]any{}
	for _, k := range viper.AllKeys() {
		v := viper.Get(k)
		if secretKeys[k] && fmt.Sprint(v) != "" {
			v = "********"
		}
		out[k] = v
	}
	out["memory.path"] = config.MemoryPath()
	out["policy.dir"] = config.PolicyDir()
	out["user.id"] = config.UserID()
	return out
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd, configListCmd)
}
