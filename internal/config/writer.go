package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// settable lists the keys `wayline config set` may write.
var settable = map[string]bool{
	"llm.provider":                true,
	"llm.model":                   true,
	"llm.embeddingModel":          true,
	"llm.apiKey":                  true,
	"llm.baseURL":                 true,
	"llm.temperature":             true,
	"llm.requestsPerSecond":       true,
	"llm.burst":                   true,
	"reasoning.maxSteps":          true,
	"reasoning.timeout":           true,
	"reasoning.maxTasks":          true,
	"reasoning.selector":          true,
	"reasoning.incompletePenalty": true,
	"gaps.timeThreshold":          true,
	"gaps.maxGaps":                true,
	"bridge.maxCandidates":        true,
	"reflection.blockFloor":       true,
	"retention.window":            true,
	"memory.path":                 true,
	"user.id":                     true,
	"server.addr":                 true,
	"policy.dir":                  true,
	"policy.watch":                true,
	"telemetry.enabled":           true,
	"telemetry.apiKey":            true,
}

// GlobalConfigPath returns the user's config file ($HOME/.wayline.yaml), the
// home entry of the config search path.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName+".yaml"), nil
}

// SetValue writes key=value into the config file at path, preserving the
// other settings. The file and its directory are created when missing.
func SetValue(path, key, value string) error {
	if !settable[key] {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}
	v.Set(key, strings.TrimSpace(value))
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}

// Keys returns the settable keys, sorted.
func Keys() []string {
	out := make([]string, 0, len(settable))
	for k := range settable {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
