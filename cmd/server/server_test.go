package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dqfoundry/dqengine/engine"
	"github.com/dqfoundry/dqengine/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	server, err := NewServer(storage.NewInMemoryCheckStore(), nil)
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return server
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestValidateEndpoint(t *testing.T) {
	server := newTestServer(t)

	t.Run("valid checks", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/checks/validate", map[string]any{
			"checks": []map[string]any{
				{
					"criticality": "error",
					"check": map[string]any{
						"function":  "is_not_null",
						"arguments": map[string]any{"col_name": "vendor_id"},
					},
				},
			},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := decodeBody[ValidateResponse](t, rec)
		if !body.Valid || len(body.Errors) != 0 {
			t.Errorf("response = %+v, want valid with no errors", body)
		}
	})

	t.Run("invalid checks report every problem", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/checks/validate", map[string]any{
			"checks": []map[string]any{
				{"check": map[string]any{"function": "no_such_check"}},
				{"criticality": "bogus", "check": map[string]any{
					"function":  "is_not_null",
					"arguments": map[string]any{"col_name": "a"},
				}},
			},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := decodeBody[ValidateResponse](t, rec)
		if body.Valid || len(body.Errors) != 2 {
			t.Errorf("response = %+v, want invalid with 2 errors", body)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checks/validate", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestApplyEndpointInlineChecks(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/apply", ApplyRequest{
		Records: []map[string]any{
			{"vendor_id": "1"},
			{"vendor_id": nil},
		},
		Columns: []string{"vendor_id"},
		Checks:  inlineNotNullChecks("vendor_id"),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody[ApplyResponse](t, rec)
	if len(body.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(body.Records))
	}
	if body.Records[0]["_errors"] != nil {
		t.Errorf("clean record annotated: %v", body.Records[0]["_errors"])
	}
	diags, ok := body.Records[1]["_errors"].(map[string]any)
	if !ok {
		t.Fatalf("dirty record _errors = %v", body.Records[1]["_errors"])
	}
	if diags["col_vendor_id_is_not_null"] != "Column vendor_id is null" {
		t.Errorf("diagnostics = %v", diags)
	}
	if body.EvaluationTime == "" {
		t.Error("evaluation time missing")
	}
}

func TestApplyEndpointSplit(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/apply", ApplyRequest{
		Records: []map[string]any{
			{"vendor_id": "1"},
			{"vendor_id": nil},
		},
		Columns: []string{"vendor_id"},
		Checks:  inlineNotNullChecks("vendor_id"),
		Split:   true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody[ApplySplitResponse](t, rec)
	if len(body.Valid) != 1 || len(body.Invalid) != 1 {
		t.Fatalf("split = %d valid / %d invalid, want 1/1", len(body.Valid), len(body.Invalid))
	}
	if _, ok := body.Valid[0]["_errors"]; ok {
		t.Error("valid records should not carry diagnostic columns")
	}
	if body.Invalid[0]["_errors"] == nil {
		t.Error("invalid records should keep their diagnostics")
	}
}

func TestApplyEndpointUsesStoredChecks(t *testing.T) {
	server := newTestServer(t)

	created := doJSON(t, server, http.MethodPost, "/api/v1/checks/", map[string]any{
		"criticality": "error",
		"check": map[string]any{
			"function":  "is_not_null",
			"arguments": map[string]any{"col_name": "vendor_id"},
		},
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", created.Code, created.Body.String())
	}

	// No inline checks; the stored definition applies.
	rec := doJSON(t, server, http.MethodPost, "/api/v1/apply", ApplyRequest{
		Records: []map[string]any{{"vendor_id": nil}},
		Columns: []string{"vendor_id"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[ApplyResponse](t, rec)
	if body.Records[0]["_errors"] == nil {
		t.Error("stored check did not annotate the record")
	}
}

func TestApplyEndpointRejectsInvalidChecks(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/apply", ApplyRequest{
		Records: []map[string]any{{"a": 1}},
		Checks: []engine.CheckSpec{
			{Check: &engine.CheckBlock{Function: "no_such_check"}},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestApplyEndpointRequiresRecords(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/apply", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChecksCRUD(t *testing.T) {
	server := newTestServer(t)

	spec := map[string]any{
		"name":        "vendor_present",
		"criticality": "error",
		"check": map[string]any{
			"function":  "is_not_null",
			"arguments": map[string]any{"col_name": "vendor_id"},
		},
	}

	// Create
	created := doJSON(t, server, http.MethodPost, "/api/v1/checks/", spec)
	if created.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", created.Code, created.Body.String())
	}
	check := decodeBody[CheckResponse](t, created)
	if check.ID == "" {
		t.Fatal("created check has no ID")
	}
	if check.Name != "vendor_present" {
		t.Errorf("created name = %q", check.Name)
	}

	// Get
	got := doJSON(t, server, http.MethodGet, "/api/v1/checks/"+check.ID, nil)
	if got.Code != http.StatusOK {
		t.Fatalf("get status = %d", got.Code)
	}

	// List
	listed := doJSON(t, server, http.MethodGet, "/api/v1/checks/", nil)
	if listed.Code != http.StatusOK {
		t.Fatalf("list status = %d", listed.Code)
	}
	list := decodeBody[ChecksListResponse](t, listed)
	if len(list.Checks) != 1 {
		t.Errorf("list has %d checks, want 1", len(list.Checks))
	}

	// Update
	spec["criticality"] = "warn"
	updated := doJSON(t, server, http.MethodPut, "/api/v1/checks/"+check.ID, spec)
	if updated.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", updated.Code, updated.Body.String())
	}
	if decodeBody[CheckResponse](t, updated).Criticality != "warn" {
		t.Error("update did not change criticality")
	}

	// Delete
	deleted := doJSON(t, server, http.MethodDelete, "/api/v1/checks/"+check.ID, nil)
	if deleted.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", deleted.Code)
	}
	if missing := doJSON(t, server, http.MethodGet, "/api/v1/checks/"+check.ID, nil); missing.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", missing.Code)
	}
}

func TestCreateCheckRejectsInvalidSpec(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/checks/", map[string]any{
		"check": map[string]any{"function": "no_such_check"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody[ValidateResponse](t, rec)
	if body.Valid || len(body.Errors) == 0 {
		t.Errorf("response = %+v, want validation errors", body)
	}
}

func TestUnknownCheckRoutes(t *testing.T) {
	server := newTestServer(t)

	if rec := doJSON(t, server, http.MethodGet, "/api/v1/checks/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get unknown status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, server, http.MethodDelete, "/api/v1/checks/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete unknown status = %d, want 404", rec.Code)
	}
}

func inlineNotNullChecks(column string) []engine.CheckSpec {
	return []engine.CheckSpec{
		{
			Criticality: "error",
			Check: &engine.CheckBlock{
				Function:  "is_not_null",
				Arguments: map[string]any{"col_name": column},
			},
		},
	}
}
