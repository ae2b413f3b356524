/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/Wayline/internal/config"
	"github.com/josephgoksu/Wayline/internal/housekeeping"
	"github.com/josephgoksu/Wayline/internal/policy"
	"github.com/josephgoksu/Wayline/internal/server"
	"github.com/josephgoksu/Wayline/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the JSON API and Prometheus metrics. While running, expired sessions
and analyses are swept every retention.sweepInterval and policy files under
policy.dir are reloaded when they change.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	srvCfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}
	retention, err := config.LoadRetentionConfig()
	if err != nil {
		return err
	}

	s, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WaitGroup to track goroutines
	var wg sync.WaitGroup
	errChan := make(chan error, 1)

	srv := server.New(s.ctx, server.Options{
		Addr:           srvCfg.Addr,
		AllowedOrigins: srvCfg.AllowedOrigins,
		UserID:         currentUser(),
		Version:        version,
	})
	srv.Start(&wg, errChan)

	sweeper := housekeeping.NewSweeper(s.ctx.Store, retention.Window, retention.SweepInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	if watcher := startPolicyWatcher(ctx, s); watcher != nil {
		defer watcher.Stop()
	}

	fmt.Printf("%s wayline %s listening on http://%s\n", ui.Icon("●", ui.StyleSuccess), version, srvCfg.Addr)
	fmt.Println(ui.StyleSubtle.Render("Press Ctrl+C to stop"))

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("shutting down", "signal", sig.String())
	case runErr = <-errChan:
		slog.Error("server failed", "error", runErr)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown error", "error", err)
	}
	wg.Wait()
	return runErr
}

// startPolicyWatcher hot-reloads the policy directory when it exists and
// watching is enabled. Watch failures only cost hot reload.
func startPolicyWatcher(ctx context.Context, s *session) *policy.Watcher {
	if !s.policyCfg.Watch || s.policyCfg.Dir == "" || s.ctx.Policy == nil {
		return nil
	}
	if info, err := os.Stat(s.policyCfg.Dir); err != nil || !info.IsDir() {
		slog.Debug("policy dir not present, hot reload off", "dir", s.policyCfg.Dir)
		return nil
	}
	w, err := policy.NewWatcher(s.ctx.Policy, s.policyCfg.Dir)
	if err != nil {
		slog.Warn("policy hot reload disabled", "error", err)
		return nil
	}
	w.Start(ctx)
	return w
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
