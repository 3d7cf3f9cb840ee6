// Package config provides loading utilities for YAML text configs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TierTable maps a billing tier to its static pre-authorization estimate.
type TierTable struct {
	Estimates   map[string]float64 `yaml:"estimates"`
	DefaultTier string             `yaml:"default_tier"`
}

// Estimate returns the per-request upper bound for a tier, falling back to the
// default tier when the tier is unknown.
func (t TierTable) Estimate(tier string) float64 {
	if v, ok := t.Estimates[strings.ToLower(tier)]; ok {
		return v
	}
	return t.Estimates[t.DefaultTier]
}

// DefaultTierTable is used when the YAML file is absent or unreadable.
func DefaultTierTable() TierTable {
	return TierTable{
		Estimates: map[string]float64{
			"free":       0.05,
			"pro":        0.25,
			"enterprise": 1.00,
		},
		DefaultTier: "free",
	}
}

// LoadTierTable loads per-tier cost estimates from a YAML file.
func LoadTierTable(path string) (TierTable, error) {
	content, err := readConfigFile(path)
	if err != nil {
		return TierTable{}, err
	}
	var table TierTable
	if err := yaml.Unmarshal(content, &table); err != nil {
		return TierTable{}, fmt.Errorf("op=config.LoadTierTable: %w", err)
	}
	if len(table.Estimates) == 0 {
		return TierTable{}, fmt.Errorf("op=config.LoadTierTable: no estimates in %s", path)
	}
	if table.DefaultTier == "" {
		table.DefaultTier = "free"
	}
	return table, nil
}

// GetTierTable loads the tier table with a hardcoded fallback.
func GetTierTable(path string) TierTable {
	table, err := LoadTierTable(path)
	if err != nil {
		return DefaultTierTable()
	}
	return table
}

// protocolYAML is the structure of the operational-protocol config file.
type protocolYAML struct {
	Texts []string `yaml:"texts"`
}

// LoadProtocolText loads the operational-protocol text prepended to every
// assistant prompt.
func LoadProtocolText(path string) (string, error) {
	content, err := readConfigFile(path)
	if err != nil {
		return "", err
	}
	var p protocolYAML
	if err := yaml.Unmarshal(content, &p); err != nil {
		return "", fmt.Errorf("op=config.LoadProtocolText: %w", err)
	}
	if len(p.Texts) == 0 {
		return "", fmt.Errorf("op=config.LoadProtocolText: no texts in %s", path)
	}
	return strings.TrimSpace(strings.Join(p.Texts, "\n")), nil
}

// GetProtocolText loads the protocol text with a hardcoded fallback.
func GetProtocolText(path string) string {
	text, err := LoadProtocolText(path)
	if err != nil {
		return "You are a project assistant. Answer from the provided project context and conversation history. Be concise and cite file paths when relevant."
	}
	return text
}

func readConfigFile(path string) ([]byte, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("op=config.readConfigFile: %w", err)
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("op=config.readConfigFile: not found: %s", absPath)
	}
	// #nosec G304 -- configuration files are operator-provided
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("op=config.readConfigFile: %w", err)
	}
	return content, nil
}
