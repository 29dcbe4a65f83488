package validate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// FileHashValidator checks artifact bytes against an expected SHA-256
// digest. Without an expected_hash in the metadata the check passes; the
// executor layers its own stored-hash comparison on top.
type FileHashValidator struct{}

func (v *FileHashValidator) Validate(_ context.Context, data []byte, metadata map[string]any) (Result, error) {
	sum := sha256.Sum256(data)
	computed := hex.EncodeToString(sum[:])

	expected, _ := metadata["expected_hash"].(string)
	valid := expected == "" || computed == expected

	res := Result{
		Valid:    valid,
		Errors:   []string{},
		Warnings: []string{},
		Report: map[string]any{
			"computed_hash": computed,
			"expected_hash": expected,
			"file_size":     len(data),
		},
	}
	if !valid {
		res.Errors = append(res.Errors, fmt.Sprintf("Hash mismatch: expected %s, got %s", expected, computed))
	}

	return res, nil
}

// ConfigFormatValidator checks that a configuration file parses as
// JSON, YAML, or INI, chosen by filename extension.
type ConfigFormatValidator struct{}

func (v *ConfigFormatValidator) Validate(_ context.Context, data []byte, metadata map[string]any) (Result, error) {
	res := Result{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
		Report:   map[string]any{},
	}

	filename, _ := metadata["filename"].(string)

	switch {
	case strings.HasSuffix(filename, ".json"):
		var cfg any
		if err := json.Unmarshal(data, &cfg); err != nil {
			res.Errors = append(res.Errors, "Invalid JSON: "+err.Error())
		} else {
			res.Report["format"] = "json"
			res.Report["keys"] = topLevelKeys(cfg)
		}

	case strings.HasSuffix(filename, ".yaml"), strings.HasSuffix(filename, ".yml"):
		var cfg any
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			res.Errors = append(res.Errors, "Invalid YAML: "+err.Error())
		} else {
			res.Report["format"] = "yaml"
			res.Report["keys"] = topLevelKeys(cfg)
		}

	case strings.HasSuffix(filename, ".ini"):
		cfg, err := ini.Load(data)
		if err != nil {
			res.Errors = append(res.Errors, "Invalid INI: "+err.Error())
		} else {
			res.Report["format"] = "ini"
			sections := []string{}
			for _, s := range cfg.Sections() {
				if s.Name() != ini.DefaultSection {
					sections = append(sections, s.Name())
				}
			}
			res.Report["sections"] = sections
		}

	default:
		res.Warnings = append(res.Warnings, "Unknown config format for file: "+filename)
		res.Report["format"] = "unknown"
	}

	res.Valid = len(res.Errors) == 0
	return res, nil
}

func topLevelKeys(cfg any) []string {
	switch m := cfg.(type) {
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		return keys
	default:
		return nil
	}
}
