// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"loaner/internal/cli"
	"loaner/internal/logger"
	"loaner/internal/relay"
	"loaner/internal/server"
	"loaner/internal/store"
)

var (
	serverPort          int
	serverDBPath        string
	serverAPIAddr       string
	serverVerboseStatus bool

	policyGuardDelete bool
	policyAutoDrain   bool
	policyDedupe      bool
	policyRestore     bool
)

var serverCmd = &cobra.Command{
	Use:   "server [port]",
	Short: "Start the loan coordination server",
	Long: `Start the loan coordination server. Clients connect over TCP (default port 8888)
and every registered client receives each state change as a push.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, source, err := loadServerConfiguration(cmd, args)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		setupLogging(config)
		log := logger.GetLogger("main")

		log.Info().
			Str("config_file", source).
			Str("db_path", config.Database.Path).
			Str("address", config.Server.Address).
			Int("workers", config.Server.Workers).
			Bool("api", config.API.Enabled).
			Bool("relay", config.Relay.Enabled).
			Msg("Starting loaner server")

		db, err := store.Open(config.Database.Path, store.Options{
			BusyTimeout:  config.GetBusyTimeout(),
			MaxOpenConns: config.Database.MaxConnections,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize database")
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		metrics := server.NewMetrics()
		opts := []server.Option{server.WithMetrics(metrics)}
		if host, err := os.Hostname(); err == nil {
			opts = append(opts, server.WithName("loaner@"+host))
		}

		if config.Relay.Enabled {
			publisher, err := relay.NewPublisher(config.Relay.Address)
			if err != nil {
				return fmt.Errorf("failed to start event relay: %w", err)
			}
			defer publisher.Close()
			opts = append(opts, server.WithEventSink(publisher))
		}

		srv := server.New(config, db, opts...)
		if err := srv.Listen(); err != nil {
			return err
		}

		errChan := make(chan error, 2)
		go func() {
			if err := srv.Serve(context.Background()); err != nil {
				errChan <- fmt.Errorf("server error: %w", err)
			}
		}()

		var apiServer *server.APIServer
		if config.API.Enabled {
			apiServer = server.NewAPIServer(srv, metrics)
			go func() {
				if err := apiServer.Start(config.API.Address); err != nil {
					errChan <- fmt.Errorf("API server error: %w", err)
				}
			}()
		}

		cmd.Printf("Loaner server listening on %s\n", srv.Addr())

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		var runErr error
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
		case runErr = <-errChan:
			log.Error().Err(runErr).Msg("Service error")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Sessions did not finish in time")
		}
		if apiServer != nil {
			if err := apiServer.Stop(ctx); err != nil {
				log.Error().Err(err).Msg("Error stopping API server")
			}
		}

		log.Info().Msg("Loaner server stopped")
		return runErr
	},
}

var serverInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration and database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("Initializing loaner server...\n")

		cm := cli.NewConfigManager(configPath)
		if cm.Exists() {
			if err := cm.ValidateConfig(); err != nil {
				return fmt.Errorf("existing configuration is invalid: %w", err)
			}
			cmd.Printf("✓ Configuration file already exists: %s\n", cm.GetConfigPath())
		} else {
			cmd.Printf("Creating default configuration: %s\n", cm.GetConfigPath())
		}

		config, err := cm.LoadConfig()
		if err != nil {
			return err
		}

		if serverDBPath != "" && serverDBPath != config.Database.Path {
			config.Database.Path = serverDBPath
			if err := cm.SaveConfig(config); err != nil {
				return err
			}
		}

		db, err := store.Open(config.Database.Path, store.Options{BusyTimeout: config.GetBusyTimeout()})
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		cmd.Printf("✓ Database ready: %s\n", config.Database.Path)
		cmd.Printf("\nStart the server with: loaner server --config %s\n", cm.GetConfigPath())
		return nil
	},
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check server status through the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkServerStatus(cmd)
	},
}

var serverPolicyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show or change the loan policy switches",
	Long: `Show or change the policy switches stored in the configuration file.
Without flags the current values are printed. The previous file is kept as a backup
before every change. Changes apply on the next server start.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cm := cli.NewConfigManager(configPath)
		if policyRestore {
			if err := cm.RestoreFromBackup(); err != nil {
				return err
			}
			cmd.Printf("✓ Configuration restored from backup\n")
		}

		policy, err := cm.GetPolicy()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("guard-delete") || flags.Changed("auto-drain") || flags.Changed("dedupe-queue") {
			if flags.Changed("guard-delete") {
				policy.GuardLaptopDelete = policyGuardDelete
			}
			if flags.Changed("auto-drain") {
				policy.AutoDrainOnReturn = policyAutoDrain
			}
			if flags.Changed("dedupe-queue") {
				policy.RejectDuplicateQueueEntries = policyDedupe
			}
			if err := cm.BackupConfig(); err != nil {
				return err
			}
			if err := cm.UpdatePolicy(*policy); err != nil {
				return err
			}
			cmd.Printf("✓ Policy saved to %s\n", cm.GetConfigPath())
		}

		cmd.Printf("Guard laptop delete:      %t\n", policy.GuardLaptopDelete)
		cmd.Printf("Auto drain on return:     %t\n", policy.AutoDrainOnReturn)
		cmd.Printf("Reject duplicate queueing: %t\n", policy.RejectDuplicateQueueEntries)
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "listening port (overrides config)")
	serverCmd.Flags().StringVar(&serverDBPath, "db", "", "database path (overrides config)")
	serverInitCmd.Flags().StringVar(&serverDBPath, "db", "", "database path")
	serverStatusCmd.Flags().StringVar(&serverAPIAddr, "api", "", "API address (overrides config)")
	serverStatusCmd.Flags().BoolVarP(&serverVerboseStatus, "verbose", "v", false, "print the raw status as JSON")
	serverPolicyCmd.Flags().BoolVar(&policyGuardDelete, "guard-delete", false, "refuse to delete laptops that are on loan")
	serverPolicyCmd.Flags().BoolVar(&policyAutoDrain, "auto-drain", false, "process the queues after every returned laptop")
	serverPolicyCmd.Flags().BoolVar(&policyDedupe, "dedupe-queue", false, "refuse to queue a student twice")
	serverPolicyCmd.Flags().BoolVar(&policyRestore, "restore", false, "restore the configuration saved before the last policy change")

	serverCmd.AddCommand(serverInitCmd)
	serverCmd.AddCommand(serverStatusCmd)
	serverCmd.AddCommand(serverPolicyCmd)
}

// loadServerConfiguration reads the config file when present and applies
// the port and database overrides
func loadServerConfiguration(cmd *cobra.Command, args []string) (*server.Config, string, error) {
	cm := cli.NewConfigManager(configPath)
	config, found, err := cm.LoadOrDefault()
	if err != nil {
		return nil, "", err
	}

	source := cm.GetConfigPath()
	if !found {
		if configPath != "" {
			return nil, "", fmt.Errorf("config file not found: %s", configPath)
		}
		source += " (not found, using defaults)"
	}

	port := serverPort
	if len(args) > 0 {
		if cmd.Flags().Changed("port") {
			return nil, "", fmt.Errorf("port given both as argument and --port")
		}
		port, err = strconv.Atoi(args[0])
		if err != nil {
			return nil, "", fmt.Errorf("invalid port %q", args[0])
		}
	}
	if port != 0 {
		if port < 1 || port > 65535 {
			return nil, "", fmt.Errorf("port %d out of range", port)
		}
		config.Server.Address = fmt.Sprintf(":%d", port)
	}

	if serverDBPath != "" {
		config.Database.Path = serverDBPath
	}

	return config, source, nil
}

// setupLogging configures the logger based on configuration
func setupLogging(config *server.Config) {
	if config.Logging.Format == "json" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetSilentMode(false)
	}
	if debug {
		logger.SetLevel(logger.LOG_DEBUG)
	} else {
		logger.SetLevel(config.Logging.Level)
	}
}

// checkServerStatus queries the health and status endpoints of a running server
func checkServerStatus(cmd *cobra.Command) error {
	config, _, err := cli.NewConfigManager(configPath).LoadOrDefault()
	if err != nil {
		cmd.Printf("⚠ Warning: Could not load configuration: %v\n", err)
		cmd.Printf("Using default settings\n\n")
		config = server.NewDefaultConfig()
	}

	apiAddr := config.API.Address
	if serverAPIAddr != "" {
		apiAddr = serverAPIAddr
	}
	if !strings.HasPrefix(apiAddr, "http://") && !strings.HasPrefix(apiAddr, "https://") {
		if strings.HasPrefix(apiAddr, ":") {
			apiAddr = "localhost" + apiAddr
		}
		apiAddr = "http://" + apiAddr
	}

	httpClient := &http.Client{
		Timeout: 5 * time.Second,
	}

	statusResp, statusErr := makeHTTPRequest(httpClient, apiAddr+"/api/v1/status")
	healthResp, healthErr := makeHTTPRequest(httpClient, apiAddr+"/api/v1/health")

	if serverVerboseStatus {
		result := map[string]interface{}{
			"online":    statusErr == nil && healthErr == nil,
			"api":       apiAddr,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if statusErr != nil {
			result["status_error"] = statusErr.Error()
		} else {
			result["status"] = statusResp
		}
		if healthErr != nil {
			result["health_error"] = healthErr.Error()
		} else {
			result["health"] = healthResp
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	if statusErr != nil {
		cmd.Printf("Server Status: ✗ OFFLINE\n")
		cmd.Printf("Connection Error: %v\n", statusErr)
		return nil
	}

	cmd.Printf("Server Status: ✓ RUNNING\n")
	cmd.Printf("API Address: %s\n", apiAddr)
	if address, ok := statusResp["address"].(string); ok {
		cmd.Printf("Listening: %s\n", address)
	}
	if uptime, ok := statusResp["uptime"].(string); ok {
		cmd.Printf("Uptime: %s\n", uptime)
	}
	if sessions, ok := statusResp["sessions"].(float64); ok {
		registered, _ := statusResp["registered"].(float64)
		cmd.Printf("Sessions: %.0f (%.0f subscribed)\n", sessions, registered)
	}
	if queues, ok := statusResp["queues"].(map[string]interface{}); ok {
		cmd.Printf("Queues: high=%v low=%v\n", queues["high"], queues["low"])
	}
	if laptops, ok := statusResp["laptops"].(map[string]interface{}); ok {
		cmd.Printf("Laptops: available=%v loaned=%v\n", orZero(laptops["available"]), orZero(laptops["loaned"]))
	}

	if healthErr != nil {
		cmd.Printf("Health: ✗ %v\n", healthErr)
	} else if components, ok := healthResp["components"].(map[string]interface{}); ok {
		for component, status := range components {
			if statusStr, ok := status.(string); ok {
				icon := "✓"
				if statusStr != "healthy" {
					icon = "✗"
				}
				cmd.Printf("%s: %s %s\n", titleCase(component), icon, titleCase(statusStr))
			}
		}
	}

	return nil
}

// makeHTTPRequest makes an HTTP GET request and returns the response body
func makeHTTPRequest(client *http.Client, url string) (map[string]interface{}, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result, nil
}

func orZero(v interface{}) interface{} {
	if v == nil {
		return 0
	}
	return v
}

// titleCase converts a string to title case (capitalize first letter)
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
