package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"surveypilot/internal/app"
	"surveypilot/internal/model"
)

var (
	requestPath  string
	businessPath string
	logDBPath    string
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Run one selection offline from YAML files",
	Long: `Runs the selection pipeline against a business configuration file instead of
MongoDB, records the run and the customer's presentation history in a local
SQLite database, and prints the result as JSON.

The request file is YAML (or JSON) shaped like the HTTP request body.`,
	Example: `  surveypilot select --request request.yaml --business-config business.yaml`,
	Args:    cobra.NoArgs,
	RunE:    runSelect,
}

func init() {
	selectCmd.Flags().StringVar(&requestPath, "request", "", "selection request file (required)")
	selectCmd.Flags().StringVar(&businessPath, "business-config", "", "business configuration file or directory (default from config)")
	selectCmd.Flags().StringVar(&logDBPath, "log-db", "", "SQLite file for run logs and history (default from config)")
	selectCmd.MarkFlagRequired("request")
}

func runSelect(cmd *cobra.Command, args []string) error {
	if businessPath == "" {
		businessPath = cfg.BusinessConfigPath
	}
	if businessPath == "" {
		return errors.New("--business-config is required when business_config_path is not configured")
	}
	if logDBPath == "" {
		logDBPath = cfg.LogDBPath
	}

	req, err := readRequest(requestPath)
	if err != nil {
		return err
	}

	off, err := app.NewOffline(cfg, logger, businessPath, logDBPath)
	if err != nil {
		return err
	}
	defer off.Close()

	result, err := off.Selections.Select(cmd.Context(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func readRequest(path string) (*model.SelectionRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req model.SelectionRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return &req, nil
}
