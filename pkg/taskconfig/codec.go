package taskconfig

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Marshal encodes cfg as JSON.
func Marshal(cfg TaskConfig) ([]byte, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("taskconfig: encode json: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a JSON document.
func Unmarshal(data []byte) (TaskConfig, error) {
	var cfg TaskConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return TaskConfig{}, fmt.Errorf("taskconfig: decode json: %w", err)
	}
	return cfg, nil
}

// MarshalYAML encodes cfg as YAML.
func MarshalYAML(cfg TaskConfig) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("taskconfig: encode yaml: %w", err)
	}
	return data, nil
}

// UnmarshalYAML decodes a YAML document. JSON input is accepted as well.
func UnmarshalYAML(data []byte) (TaskConfig, error) {
	var cfg TaskConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return TaskConfig{}, fmt.Errorf("taskconfig: decode yaml: %w", err)
	}
	return cfg, nil
}
