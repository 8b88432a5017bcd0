// Package testsupport holds shared fixtures and helpers for package tests.
package testsupport

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formscript/pkg/formschema"
)

//go:embed designs/*.json
var designs embed.FS

// CustomerDesign has a void Card wrapping musteriTipi and vergiNo, plus an
// approve and a reject button.
func CustomerDesign() []byte {
	return mustDesign("designs/customer.json")
}

// AmountDesign has the flat number fields tutar1, tutar2 and toplamTutar.
func AmountDesign() []byte {
	return mustDesign("designs/amounts.json")
}

func mustDesign(name string) []byte {
	data, err := designs.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("testsupport: %v", err))
	}
	return data
}

// LoadDesign reads a design document from disk.
func LoadDesign(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testsupport: read design: %w", err)
	}
	return data, nil
}

// MustFields extracts the fields of a design and fails the test on error.
func MustFields(t testing.TB, design []byte) []formschema.FormField {
	t.Helper()

	fields, err := formschema.ExtractFields(design)
	if err != nil {
		t.Fatalf("extract fields: %v", err)
	}
	return fields
}

// MustJSON encodes value and fails the test on error.
func MustJSON(t testing.TB, value any) []byte {
	t.Helper()

	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	return data
}

// Diff reports the difference between want and got as "(-want +got)".
func Diff(want, got any) string {
	return cmp.Diff(want, got)
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
