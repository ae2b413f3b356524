/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/config"
	"github.com/josephgoksu/Wayline/internal/llm"
	"github.com/josephgoksu/Wayline/internal/memory"
	"github.com/josephgoksu/Wayline/internal/policy"
	"github.com/josephgoksu/Wayline/internal/telemetry"
	"github.com/josephgoksu/Wayline/internal/ui"
)

func isJSON() bool {
	return viper.GetBool("json")
}

func isVerbose() bool {
	return viper.GetBool("verbose")
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

func currentUser() string {
	return config.UserID()
}

// session bundles everything a command needs; Close releases it.
type session struct {
	ctx       *app.Context
	policyCfg config.PolicyConfig
	closer    []func() error
}

func (s *session) Close() {
	for i := len(s.closer) - 1; i >= 0; i-- {
		if err := s.closer[i](); err != nil {
			slog.Debug("close failed", "error", err)
		}
	}
}

// openApp opens the store and wires the AI services, policy engine and
// telemetry from config.
func openApp(ctx context.Context) (*session, error) {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		return nil, err
	}
	llmCfg, err := config.LoadLLMConfig()
	if err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}
	text, err := llm.NewTextService(ctx, llmCfg)
	if err != nil {
		return nil, err
	}
	vectors, err := llm.NewVectorService(ctx, llmCfg)
	if err != nil {
		return nil, err
	}
	if !llmCfg.Enabled() {
		slog.Debug("no llm provider configured, running deterministic fallbacks")
	}

	store, err := memory.NewSQLiteStore(config.MemoryPath())
	if err != nil {
		return nil, fmt.Errorf("open memory: %w", err)
	}
	s := &session{closer: []func() error{store.Close}}

	appCtx := app.NewContext(store, text, vectors, cfg)

	s.policyCfg = config.LoadPolicyConfig()
	engine, err := policy.NewEngine(ctx, policy.EngineConfig{Dir: s.policyCfg.Dir})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("load policies: %w", err)
	}
	appCtx.Policy = engine

	tcfg := config.LoadTelemetryConfig()
	dataDir, _ := config.GetDataDir()
	client, err := telemetry.New(telemetry.Options{
		Enabled:  tcfg.Enabled,
		APIKey:   tcfg.APIKey,
		Endpoint: tcfg.Endpoint,
		Version:  version,
		DataDir:  dataDir,
	})
	if err != nil {
		slog.Warn("telemetry disabled", "error", err)
		client = telemetry.NoopClient{}
	}
	appCtx.Telemetry = client
	s.closer = append(s.closer, client.Close)

	s.ctx = appCtx
	return s, nil
}

// taskNames resolves ids to task text for display.
func taskNames(s *session) ui.Names {
	list, err := app.NewTaskApp(s.ctx).List(currentUser(), true)
	if err != nil {
		slog.Debug("task lookup failed", "error", err)
		return nil
	}
	return ui.NamesOf(list.Tasks)
}

// splitIDs accepts ids as separate args or comma-separated.
func splitIDs(values []string) []string {
	var out []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}
