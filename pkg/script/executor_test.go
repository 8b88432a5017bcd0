package script

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formscript/pkg/fieldsettings"
	"github.com/goliatone/go-formscript/pkg/formschema"
)

func customerFields() []formschema.FormField {
	return []formschema.FormField{
		{Key: "k3v9qx2m1a.musteriTipi", NormalizedKey: "musteriTipi", Type: formschema.FieldTypeString},
		{Key: "k3v9qx2m1a.vergiNo", NormalizedKey: "vergiNo", Type: formschema.FieldTypeString},
	}
}

func amountFields() []formschema.FormField {
	return []formschema.FormField{
		{Key: "tutar1", NormalizedKey: "tutar1", Type: formschema.FieldTypeNumber},
		{Key: "tutar2", NormalizedKey: "tutar2", Type: formschema.FieldTypeNumber},
		{Key: "toplamTutar", NormalizedKey: "toplamTutar", Type: formschema.FieldTypeNumber},
	}
}

func newTestHost(fields []formschema.FormField, values map[string]any) *Host {
	return NewHost(fields, fieldsettings.Initialize(fields, nil), values)
}

func TestExecutor_ConditionalVisibility(t *testing.T) {
	t.Parallel()

	const source = `if (getFieldValue("musteriTipi") === "Bireysel") { setFieldVisible("vergiNo", false); } else { setFieldVisible("vergiNo", true); }`

	cases := []struct {
		customerType string
		wantVisible  bool
	}{
		{customerType: "Bireysel", wantVisible: false},
		{customerType: "Kurumsal", wantVisible: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.customerType, func(t *testing.T) {
			t.Parallel()

			host := newTestHost(customerFields(), map[string]any{"musteriTipi": tc.customerType})
			result := NewExecutor().Run(context.Background(), source, TriggerLoad, host)
			if result.Err != nil {
				t.Fatalf("unexpected error: %v", result.Err)
			}
			setting, ok := host.Settings().Get("k3v9qx2m1a.vergiNo")
			if !ok {
				t.Fatalf("vergiNo setting missing")
			}
			if setting.Visible != tc.wantVisible {
				t.Fatalf("vergiNo visible = %v, want %v", setting.Visible, tc.wantVisible)
			}
		})
	}
}

func TestExecutor_Calculation(t *testing.T) {
	t.Parallel()

	host := newTestHost(amountFields(), map[string]any{"tutar1": 100, "tutar2": 50})
	result := NewExecutor().Run(context.Background(),
		`setFieldValue("toplamTutar", (getFieldValue("tutar1")||0) + (getFieldValue("tutar2")||0))`,
		TriggerChange, host)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if diff := cmp.Diff(map[string]any{"toplamTutar": float64(150)}, host.Changes()); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}
	if got, _ := host.GetFieldValue("toplamTutar"); got != float64(150) {
		t.Fatalf("toplamTutar = %v, want 150", got)
	}
}

func TestExecutor_FailureIsolation(t *testing.T) {
	t.Parallel()

	fields := []formschema.FormField{
		{Key: "a", NormalizedKey: "a"},
		{Key: "b", NormalizedKey: "b"},
	}
	host := newTestHost(fields, nil)
	result := NewExecutor().Run(context.Background(),
		`setFieldVisible("a", false); throw new Error("boom"); setFieldVisible("b", false);`,
		TriggerLoad, host)

	var runErr *RuntimeError
	if !errors.As(result.Err, &runErr) {
		t.Fatalf("expected RuntimeError, got %v", result.Err)
	}
	if !strings.Contains(runErr.Error(), "boom") {
		t.Fatalf("expected thrown message in error, got %q", runErr.Error())
	}
	a, _ := host.Settings().Get("a")
	b, _ := host.Settings().Get("b")
	if a.Visible {
		t.Fatalf("field a should stay hidden after the failure")
	}
	if !b.Visible {
		t.Fatalf("field b must not be touched")
	}
}

func TestExecutor_UnknownKeysAreTolerated(t *testing.T) {
	t.Parallel()

	host := newTestHost(customerFields(), map[string]any{"musteriTipi": "Bireysel"})
	before := host.Settings().Len()
	result := NewExecutor().Run(context.Background(), `
setFieldVisible("doesNotExist", false);
setFieldReadonly("doesNotExist", true);
setFieldValue("doesNotExist", 1);
if (getFieldValue("doesNotExist") !== undefined) { throw new Error("expected undefined"); }
`, TriggerLoad, host)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if host.Settings().Len() != before {
		t.Fatalf("store size changed from %d to %d", before, host.Settings().Len())
	}
	if len(host.Changes()) != 0 {
		t.Fatalf("unknown key produced a value change: %v", host.Changes())
	}
}

func TestExecutor_RawKeysResolve(t *testing.T) {
	t.Parallel()

	host := newTestHost(customerFields(), map[string]any{"k3v9qx2m1a.musteriTipi": "Kurumsal"})
	result := NewExecutor().Run(context.Background(), `
if (getFieldValue("musteriTipi") !== "Kurumsal") { throw new Error("normalized lookup failed"); }
setFieldReadonly("k3v9qx2m1a.vergiNo", true);
`, TriggerLoad, host)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	setting, _ := host.Settings().Get("k3v9qx2m1a.vergiNo")
	if !setting.Readonly {
		t.Fatalf("expected raw key to address vergiNo")
	}
}

func TestExecutor_FormValuesSnapshot(t *testing.T) {
	t.Parallel()

	host := newTestHost(amountFields(), map[string]any{"tutar1": 10, "tutar2": 5})
	result := NewExecutor().Run(context.Background(), `
formValues.tutar1 = 999;
setFieldValue("tutar2", 7);
if (getFieldValue("tutar2") !== 7) { throw new Error("write not visible to read"); }
setFieldValue("toplamTutar", formValues.tutar1 + formValues.tutar2);
`, TriggerLoad, host)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	got, _ := host.GetFieldValue("toplamTutar")
	if got != float64(15) {
		t.Fatalf("toplamTutar = %v, want 15 from the run-start snapshot", got)
	}
	if first, _ := host.GetFieldValue("tutar1"); first != 10 {
		t.Fatalf("formValues assignment leaked into host: %v", first)
	}
}

func TestExecutor_SandboxContainment(t *testing.T) {
	t.Parallel()

	fields := []formschema.FormField{{Key: "meta", NormalizedKey: "meta"}, {Key: "out", NormalizedKey: "out"}}
	input := map[string]any{"meta": map[string]any{"count": 1}}
	host := newTestHost(fields, input)

	result := NewExecutor().Run(context.Background(), `
const meta = getFieldValue("meta");
meta.count = 42;
setFieldValue("out", [typeof require, typeof process, typeof fetch, typeof XMLHttpRequest].join(","));
`, TriggerLoad, host)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if got := input["meta"].(map[string]any)["count"]; got != 1 {
		t.Fatalf("caller snapshot mutated: %v", got)
	}
	stored, _ := host.GetFieldValue("meta")
	if stored.(map[string]any)["count"] != 1 {
		t.Fatalf("host value mutated through returned object: %v", stored)
	}
	out, _ := host.GetFieldValue("out")
	if out != "undefined,undefined,undefined,undefined" {
		t.Fatalf("ambient globals visible to scripts: %v", out)
	}
}

func TestExecutor_EarlyReturn(t *testing.T) {
	t.Parallel()

	host := newTestHost(customerFields(), nil)
	result := NewExecutor().Run(context.Background(), `
if (!getFieldValue("musteriTipi")) { return; }
setFieldVisible("vergiNo", false);
`, TriggerLoad, host)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	setting, _ := host.Settings().Get("k3v9qx2m1a.vergiNo")
	if !setting.Visible {
		t.Fatalf("script should have returned before hiding vergiNo")
	}
}

func TestExecutor_SyntaxErrorSurfacesAtRun(t *testing.T) {
	t.Parallel()

	host := newTestHost(customerFields(), nil)
	result := NewExecutor().Run(context.Background(), `if (getFieldValue("musteriTipi" {`, TriggerLoad, host)

	var runErr *RuntimeError
	if !errors.As(result.Err, &runErr) {
		t.Fatalf("expected RuntimeError, got %v", result.Err)
	}
	if !runErr.SyntaxError() {
		t.Fatalf("expected a syntax error, got %v", runErr.Err)
	}
}

func TestExecutor_BudgetInterruptsLoops(t *testing.T) {
	t.Parallel()

	host := newTestHost(customerFields(), nil)
	executor := NewExecutor(WithBudget(20 * time.Millisecond))
	result := executor.Run(context.Background(), `setFieldVisible("vergiNo", false); while (true) {}`, TriggerLoad, host)

	if !errors.Is(result.Err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", result.Err)
	}
	setting, _ := host.Settings().Get("k3v9qx2m1a.vergiNo")
	if setting.Visible {
		t.Fatalf("mutation before the interrupt must be kept")
	}
}

func TestExecutor_ContextCancellation(t *testing.T) {
	t.Parallel()

	host := newTestHost(customerFields(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := NewExecutor(WithBudget(0)).Run(ctx, `while (true) {}`, TriggerLoad, host)
	if !errors.Is(result.Err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", result.Err)
	}
}

func TestExecutor_StackOverflowIsContained(t *testing.T) {
	t.Parallel()

	host := newTestHost(customerFields(), nil)
	result := NewExecutor(WithMaxCallStackSize(64)).Run(context.Background(), `function f() { return f(); } f();`, TriggerLoad, host)
	if result.Err == nil {
		t.Fatalf("expected runaway recursion to fail")
	}
}

func TestExecutor_EmptySourceIsNoop(t *testing.T) {
	t.Parallel()

	host := newTestHost(customerFields(), nil)
	result := NewExecutor(WithRunIDs(func() string { return "run-1" })).Run(context.Background(), "  \n", TriggerLoad, host)
	if result.Err != nil || result.RunID != "run-1" || result.Trigger != TriggerLoad {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestExecutor_Deterministic(t *testing.T) {
	t.Parallel()

	const source = `
const keys = Object.keys(formValues).join("|");
setFieldValue("toplamTutar", keys);
setFieldReadonly("tutar1", getFieldValue("tutar2") > 10);
`
	run := func() (map[string]any, map[string]fieldsettings.FieldSetting) {
		host := newTestHost(amountFields(), map[string]any{"tutar2": 20, "tutar1": 1})
		if result := NewExecutor().Run(context.Background(), source, TriggerLoad, host); result.Err != nil {
			t.Fatalf("unexpected error: %v", result.Err)
		}
		return host.Changes(), host.Settings().Snapshot()
	}
	firstChanges, firstSettings := run()
	for i := 0; i < 5; i++ {
		changes, settings := run()
		if diff := cmp.Diff(firstChanges, changes); diff != "" {
			t.Fatalf("changes differ between runs (-first +got):\n%s", diff)
		}
		if diff := cmp.Diff(firstSettings, settings); diff != "" {
			t.Fatalf("settings differ between runs (-first +got):\n%s", diff)
		}
	}
	if firstChanges["toplamTutar"] != "tutar1|tutar2" {
		t.Fatalf("formValues keys not sorted: %v", firstChanges["toplamTutar"])
	}
}

func TestExecutor_ConsoleAndFailuresAreLogged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	executor := NewExecutor(WithLogger(logger), WithRunIDs(func() string { return "run-42" }))

	host := newTestHost(customerFields(), map[string]any{"musteriTipi": "Bireysel"})
	executor.Run(context.Background(), `console.log("type:", getFieldValue("musteriTipi")); undefinedFn();`, TriggerChange, host)

	out := buf.String()
	for _, want := range []string{"type: Bireysel", "run_id=run-42", "trigger=change", "field script failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestExecutor_Check(t *testing.T) {
	t.Parallel()

	e := NewExecutor()
	if err := e.Check(`setFieldVisible("vergiNo", false);`); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if err := e.Check(""); err != nil {
		t.Fatalf("empty source should pass: %v", err)
	}
	if err := e.Check(`if (`); err == nil {
		t.Fatalf("expected a syntax error")
	}
}
