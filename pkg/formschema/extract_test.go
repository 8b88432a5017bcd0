package formschema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func TestExtractFields_CustomerDesign(t *testing.T) {
	t.Parallel()

	fields, err := ExtractFields(loadFixture(t, "customer_design.json"))
	if err != nil {
		t.Fatalf("ExtractFields returned error: %v", err)
	}

	want := []FormField{
		{Key: "k3v9qx2m1a.musteriTipi", NormalizedKey: "musteriTipi", Label: "Customer type", Type: FieldTypeString, Component: "Select"},
		{Key: "k3v9qx2m1a.vergiNo", NormalizedKey: "vergiNo", Label: "Tax number", Type: FieldTypeString, Component: "Input"},
		{Key: "u0migqzm2uo.salary", NormalizedKey: "salary", Label: "Salary", Type: FieldTypeNumber, Component: "NumberPicker", Required: true},
		{Key: "u0migqzm2uo.startDate", NormalizedKey: "startDate", Label: "startDate", Type: FieldTypeDate, Component: "DatePicker", Required: true},
		{Key: "notes", NormalizedKey: "notes", Label: "notes", Type: FieldTypeString, Component: "Input.TextArea"},
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractFields_Deterministic(t *testing.T) {
	t.Parallel()

	raw := loadFixture(t, "customer_design.json")
	for i := 0; i < 5; i++ {
		first, err := ExtractFields(raw)
		if err != nil {
			t.Fatalf("ExtractFields returned error: %v", err)
		}
		second, err := ExtractFields(raw)
		if err != nil {
			t.Fatalf("ExtractFields returned error: %v", err)
		}
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("extraction not deterministic (-first +second):\n%s", diff)
		}
	}
}

func TestExtractFields_YAMLKeepsOrder(t *testing.T) {
	t.Parallel()

	raw := []byte(`
schema:
  type: object
  properties:
    zeta:
      type: string
      x-component: Input
    alpha:
      type: boolean
      x-component: Switch
    group:
      type: void
      x-component: FormLayout
      properties:
        middle:
          type: integer
          x-component: NumberPicker
`)
	fields, err := ExtractFields(raw)
	if err != nil {
		t.Fatalf("ExtractFields returned error: %v", err)
	}
	got := make([]string, 0, len(fields))
	for _, field := range fields {
		got = append(got, field.Key+":"+string(field.Type))
	}
	want := []string{"zeta:string", "alpha:boolean", "group.middle:number"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractFields_BareSchema(t *testing.T) {
	t.Parallel()

	fields, err := ExtractFields([]byte(`{"type":"object","properties":{"name":{"x-component":"Input","label":"Full name"}}}`))
	if err != nil {
		t.Fatalf("ExtractFields returned error: %v", err)
	}
	if len(fields) != 1 || fields[0].Label != "Full name" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}

func TestExtractFields_Malformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":            "",
		"broken json":      `{"schema": {`,
		"array document":   `[1, 2, 3]`,
		"schema not map":   `{"schema": "nope"}`,
		"properties array": `{"schema": {"properties": []}}`,
		"trailing data":    `{"schema": {}} {}`,
	}
	for name, raw := range cases {
		raw := raw
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fields, err := ExtractFields([]byte(raw))
			if !errors.Is(err, ErrSchemaMalformed) {
				t.Fatalf("expected ErrSchemaMalformed, got %v", err)
			}
			if fields == nil || len(fields) != 0 {
				t.Fatalf("expected empty non-nil field list, got %#v", fields)
			}
		})
	}
}

func TestExtractFields_YAMLAliasCycle(t *testing.T) {
	t.Parallel()

	fields, err := ExtractFields([]byte("schema: &s\n  properties:\n    loop: *s\n"))
	if !errors.Is(err, ErrSchemaMalformed) {
		t.Fatalf("expected ErrSchemaMalformed, got %v", err)
	}
	if fields == nil || len(fields) != 0 {
		t.Fatalf("expected empty non-nil field list, got %#v", fields)
	}
}

func TestExtractFields_YAMLAliasExpansionLimit(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("l0: &l0 [x, x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i < 10; i++ {
		fmt.Fprintf(&b, "l%d: &l%d [", i, i)
		for j := 0; j < 10; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "*l%d", i-1)
		}
		b.WriteString("]\n")
	}
	b.WriteString("schema:\n  properties:\n    bomb:\n      enum: *l9\n")

	_, err := ExtractFields([]byte(b.String()))
	if !errors.Is(err, ErrSchemaMalformed) {
		t.Fatalf("expected ErrSchemaMalformed, got %v", err)
	}
}

func TestExtractFields_YAMLSharedAnchor(t *testing.T) {
	t.Parallel()

	raw := []byte(`
schema:
  properties:
    first: &amount
      type: number
      x-component: NumberPicker
    second: *amount
`)
	fields, err := ExtractFields(raw)
	if err != nil {
		t.Fatalf("ExtractFields returned error: %v", err)
	}
	got := make([]string, 0, len(fields))
	for _, field := range fields {
		got = append(got, field.Key+":"+string(field.Type))
	}
	want := []string{"first:number", "second:number"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractFields_NoProperties(t *testing.T) {
	t.Parallel()

	fields, err := ExtractFields([]byte(`{"schema": {"type": "object"}}`))
	if err != nil {
		t.Fatalf("ExtractFields returned error: %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("expected no fields, got %+v", fields)
	}
}

func TestParseDesign_Kinds(t *testing.T) {
	t.Parallel()

	design, err := ParseDesign(loadFixture(t, "customer_design.json"))
	if err != nil {
		t.Fatalf("ParseDesign returned error: %v", err)
	}
	got := map[string]Kind{}
	for _, child := range design.Schema.Children {
		got[child.Name] = child.Kind
	}
	want := map[string]Kind{
		"k3v9qx2m1a":  KindContainer,
		"u0migqzm2uo": KindContainer,
		"layoutGrid":  KindContainer,
		"decorated":   KindIgnorable,
		"notes":       KindLeaf,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "u0migqzm2uo.salary", want: "salary"},
		{in: "u0migqzm2uo.stafftype", want: "stafftype"},
		{in: "card.section.salary", want: "salary"},
		{in: "abcdefghij.card.total", want: "total"},
		{in: "salary", want: "salary"},
		{in: "trailing.", want: "trailing"},
		{in: "...", want: "..."},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		if got := NormalizeKey(tc.in); got != tc.want {
			t.Fatalf("NormalizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeKey_Idempotent(t *testing.T) {
	t.Parallel()

	keys := []string{
		"u0migqzm2uo.salary",
		"abcdefghij.klmnopqrst..",
		"a.b.c",
		"x.",
		".",
		"..",
		"plain",
		"k3v9qx2m1a.musteriTipi",
		"12345678.90",
	}
	for _, key := range keys {
		once := NormalizeKey(key)
		if twice := NormalizeKey(once); twice != once {
			t.Fatalf("NormalizeKey not idempotent for %q: %q then %q", key, once, twice)
		}
	}
}

func TestParseFieldType(t *testing.T) {
	t.Parallel()

	cases := map[string]FieldType{
		"":          FieldTypeString,
		"string":    FieldTypeString,
		"integer":   FieldTypeNumber,
		"Number":    FieldTypeNumber,
		"boolean":   FieldTypeBoolean,
		"date":      FieldTypeDate,
		"date-time": FieldTypeDatetime,
		"datetime":  FieldTypeDatetime,
		"array":     FieldType("array"),
	}
	for in, want := range cases {
		if got := ParseFieldType(in); got != want {
			t.Fatalf("ParseFieldType(%q) = %q, want %q", in, got, want)
		}
	}
	if FieldType("array").Known() {
		t.Fatalf("array should not be a known field type")
	}
}

func TestExtractButtons(t *testing.T) {
	t.Parallel()

	buttons := ExtractButtons(loadFixture(t, "customer_design.json"))
	want := []Button{
		{ID: "approve", Label: "Approve", Action: "approve", Type: "default", Color: "success"},
		{ID: "reject", Label: "Reject", Action: "reject", Type: "default", Color: "primary"},
	}
	if diff := cmp.Diff(want, buttons); diff != "" {
		t.Fatalf("buttons mismatch (-want +got):\n%s", diff)
	}

	if got := ExtractButtons([]byte("{")); got != nil {
		t.Fatalf("expected no buttons for malformed design, got %+v", got)
	}
}

func TestSanitizeLabel(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  Plain  ":                     "Plain",
		"<b>Bold</b> title":             "Bold title",
		"Tom & Jerry":                   "Tom & Jerry",
		`<script>alert("x")</script>Ok`: "Ok",
		"":                              "",
	}
	for in, want := range cases {
		if got := SanitizeLabel(in); got != want {
			t.Fatalf("SanitizeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
