package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formscript/internal/store"
	"github.com/goliatone/go-formscript/pkg/script"
	"github.com/goliatone/go-formscript/pkg/taskconfig"
	"github.com/goliatone/go-formscript/pkg/testsupport"
)

const customerScript = `if (getFieldValue("musteriTipi") === "Bireysel") { setFieldVisible("vergiNo", false); } else { setFieldVisible("vergiNo", true); }`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	tasks, err := store.Open(context.Background(), "file:"+filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { tasks.Close() })

	ts := httptest.NewServer(New(tasks).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(testsupport.MustJSON(t, body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		var raw json.RawMessage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		if len(raw) > 0 && raw[0] == '{' {
			require.NoError(t, json.Unmarshal(raw, &out))
		} else {
			out = map[string]any{"items": nil}
			var items []any
			require.NoError(t, json.Unmarshal(raw, &items))
			out["items"] = items
		}
	}
	return resp, out
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := do(t, ts, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestServer_Fields(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := do(t, ts, http.MethodPost, "/v1/fields", map[string]any{
		"design": json.RawMessage(testsupport.CustomerDesign()),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fields := body["fields"].([]any)
	require.Len(t, fields, 2)
	first := fields[0].(map[string]any)
	assert.Equal(t, "k3v9qx2m1a.musteriTipi", first["key"])
	assert.Equal(t, "musteriTipi", first["normalizedKey"])

	settings := body["settings"].(map[string]any)
	assert.Equal(t, true, settings["k3v9qx2m1a.vergiNo"].(map[string]any)["visible"])
	assert.Len(t, body["buttons"], 2)
}

func TestServer_FieldsAcceptsDesignText(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := do(t, ts, http.MethodPost, "/v1/fields", map[string]any{
		"design": string(testsupport.AmountDesign()),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["fields"], 3)
}

func TestServer_FieldsDegradesOnMalformedDesign(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := do(t, ts, http.MethodPost, "/v1/fields", map[string]any{"design": "{not json"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["fields"])
	assert.Empty(t, body["settings"])
	assert.NotEmpty(t, body["schemaError"])
}

func TestServer_Typings(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := do(t, ts, http.MethodPost, "/v1/typings", map[string]any{
		"design": json.RawMessage(testsupport.AmountDesign()),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	declarations := body["declarations"].(string)
	assert.Contains(t, declarations, "getFieldValue")
	assert.Contains(t, declarations, "toplamTutar")
}

func TestServer_TaskLifecycle(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp, _ := do(t, ts, http.MethodGet, "/v1/tasks/review", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := do(t, ts, http.MethodPut, "/v1/tasks/review", taskconfig.TaskConfig{
		Name:        "Review",
		FieldScript: customerScript,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := body["config"].(map[string]any)
	assert.Equal(t, string(script.EventOnLoad), cfg["scriptEventType"])
	assert.Equal(t, string(taskconfig.AssignDirectManager), cfg["assignmentRule"].(map[string]any)["assignmentType"])

	resp, body = do(t, ts, http.MethodGet, "/v1/tasks/review", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, customerScript, body["config"].(map[string]any)["fieldScript"])

	resp, body = do(t, ts, http.MethodGet, "/v1/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 1)

	resp, _ = do(t, ts, http.MethodDelete, "/v1/tasks/review", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, ts, http.MethodDelete, "/v1/tasks/review", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_PutRejectsInvalidConfigs(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp, body := do(t, ts, http.MethodPut, "/v1/tasks/manual", taskconfig.TaskConfig{
		Assignment: taskconfig.AssignmentRule{Type: taskconfig.AssignManual},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INVALID_ASSIGNMENT", body["code"])

	resp, body = do(t, ts, http.MethodPut, "/v1/tasks/mode", taskconfig.TaskConfig{
		ScriptEventType: script.EventMode("onSubmit"),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INVALID_EVENT_MODE", body["code"])
}

func TestServer_EvaluateStoredTask(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, _ := do(t, ts, http.MethodPut, "/v1/tasks/review", taskconfig.TaskConfig{
		FieldScript:     customerScript,
		ScriptEventType: script.EventBoth,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, ts, http.MethodPost, "/v1/tasks/review/evaluate", map[string]any{
		"design":  json.RawMessage(testsupport.CustomerDesign()),
		"trigger": "load",
		"values":  map[string]any{"musteriTipi": "Bireysel"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ran"])
	assert.Equal(t, "load", body["trigger"])
	assert.NotEmpty(t, body["runId"])
	settings := body["settings"].(map[string]any)
	assert.Equal(t, false, settings["k3v9qx2m1a.vergiNo"].(map[string]any)["visible"])

	resp, body = do(t, ts, http.MethodPost, "/v1/tasks/review/evaluate", map[string]any{
		"design":  json.RawMessage(testsupport.CustomerDesign()),
		"trigger": "change",
		"values":  map[string]any{"musteriTipi": "Bireysel"},
		"field":   "musteriTipi",
		"value":   "Kurumsal",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	settings = body["settings"].(map[string]any)
	assert.Equal(t, true, settings["k3v9qx2m1a.vergiNo"].(map[string]any)["visible"])
}

func TestServer_EvaluateUnsavedConfig(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := do(t, ts, http.MethodPost, "/v1/tasks/draft/evaluate", map[string]any{
		"design":  json.RawMessage(testsupport.AmountDesign()),
		"trigger": "change",
		"values":  map[string]any{"tutar1": 100},
		"field":   "tutar2",
		"value":   50,
		"config": taskconfig.TaskConfig{
			FieldScript:     `setFieldValue("toplamTutar", (getFieldValue("tutar1")||0) + (getFieldValue("tutar2")||0))`,
			ScriptEventType: script.EventOnChange,
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"toplamTutar": float64(150)}, body["changes"])
	assert.Equal(t, float64(150), body["values"].(map[string]any)["toplamTutar"])
}

func TestServer_EvaluateReportsScriptFailure(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := do(t, ts, http.MethodPost, "/v1/tasks/draft/evaluate", map[string]any{
		"design":  json.RawMessage(testsupport.AmountDesign()),
		"trigger": "load",
		"config":  taskconfig.TaskConfig{FieldScript: `undefinedFunction()`},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, true, body["settings"].(map[string]any)["tutar1"].(map[string]any)["visible"])
}

func TestServer_EvaluateValidation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp, body := do(t, ts, http.MethodPost, "/v1/tasks/draft/evaluate", map[string]any{"trigger": "submit"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_TRIGGER", body["code"])

	resp, _ = do(t, ts, http.MethodPost, "/v1/tasks/draft/evaluate", map[string]any{"trigger": "change"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, ts, http.MethodPost, "/v1/tasks/missing/evaluate", map[string]any{
		"design":  json.RawMessage(testsupport.AmountDesign()),
		"trigger": "load",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_EvaluateDegradesOnMalformedDesign(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := do(t, ts, http.MethodPost, "/v1/tasks/draft/evaluate", map[string]any{
		"design":  "schema: &s\n  properties:\n    loop: *s\n",
		"trigger": "load",
		"values":  map[string]any{"tutar1": 5},
		"config":  taskconfig.TaskConfig{FieldScript: `setFieldValue("tutar1", 1)`},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ran"])
	assert.NotEmpty(t, body["schemaError"])
	assert.Empty(t, body["settings"])
	assert.Empty(t, body["changes"])
}

func TestServer_EvaluateChangeIncludesLoadChanges(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := do(t, ts, http.MethodPost, "/v1/tasks/draft/evaluate", map[string]any{
		"design":  json.RawMessage(testsupport.AmountDesign()),
		"trigger": "change",
		"field":   "tutar2",
		"value":   50,
		"config": taskconfig.TaskConfig{
			FieldScript: `if (getFieldValue("tutar2") == null) {
				setFieldValue("tutar1", 7);
			} else {
				setFieldValue("toplamTutar", getFieldValue("tutar1") + getFieldValue("tutar2"));
			}`,
			ScriptEventType: script.EventBoth,
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["loadRan"])
	assert.Equal(t, map[string]any{"tutar1": float64(7), "toplamTutar": float64(57)}, body["changes"])
}
