package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formscript/pkg/formschema"
	"github.com/goliatone/go-formscript/pkg/taskconfig"
)

// designSource is where a command reads its form design from.
type designSource struct {
	design    string
	openapi   string
	operation string
}

func (s *designSource) bind(fs *flag.FlagSet) {
	fs.StringVar(&s.design, "design", "", "form design document (JSON or YAML)")
	fs.StringVar(&s.openapi, "openapi", "", "OpenAPI document to build the design from")
	fs.StringVar(&s.operation, "operation", "", "operation id whose request body is the form (with -openapi)")
}

func (s designSource) load(ctx context.Context) (formschema.Design, error) {
	switch {
	case s.openapi != "":
		raw, err := os.ReadFile(s.openapi)
		if err != nil {
			return formschema.Design{}, fmt.Errorf("read openapi: %w", err)
		}
		return formschema.FromOpenAPI(ctx, raw, s.operation)
	case s.design != "":
		raw, err := os.ReadFile(s.design)
		if err != nil {
			return formschema.Design{}, fmt.Errorf("read design: %w", err)
		}
		return formschema.ParseDesign(raw)
	default:
		return formschema.Design{}, errors.New("one of -design or -openapi is required")
	}
}

// readTaskConfig reads a saved task config. Files ending in .yaml or .yml are
// read as YAML, everything else as JSON. An empty path yields nil.
func readTaskConfig(path string) (*taskconfig.TaskConfig, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task config: %w", err)
	}
	var cfg taskconfig.TaskConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = taskconfig.UnmarshalYAML(raw)
	default:
		cfg, err = taskconfig.Unmarshal(raw)
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readValues reads the initial form values from a JSON or YAML object.
func readValues(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}
	values := make(map[string]any)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &values)
	default:
		err = json.Unmarshal(raw, &values)
	}
	if err != nil {
		return nil, fmt.Errorf("parse values: %w", err)
	}
	return normalizeNumbers(values), nil
}

// normalizeNumbers turns YAML integers into float64 so values match what
// the JSON API and scripts see.
func normalizeNumbers(values map[string]any) map[string]any {
	for key, value := range values {
		switch v := value.(type) {
		case int:
			values[key] = float64(v)
		case int64:
			values[key] = float64(v)
		}
	}
	return values
}

func writeEncoded(w io.Writer, format string, value any) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
