package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/orgdir/orgdir/internal/service"
	"github.com/orgdir/orgdir/internal/testutil/memstore"
)

type testAPI struct {
	server *httptest.Server
	store  *memstore.Store
}

func newTestAPI(t *testing.T, exposeDetails bool) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	hashPlain := func(p string) (string, error) { return "hashed:" + p, nil }

	users := NewUserHandler(service.NewUserService(store, hashPlain, nil), logger, exposeDetails)
	entities := NewEntityHandler(service.NewEntityService(store, nil), logger, exposeDetails)
	assocs := NewAssociationHandler(service.NewAssociationService(store, nil), logger, exposeDetails)

	h := New("test")
	r := chi.NewRouter()
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	r.Mount("/users", users.Routes())
	r.Mount("/entities", entities.Routes())
	r.Mount("/user-entities", assocs.Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testAPI{server: srv, store: store}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, map[string]any, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	var obj map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &obj); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, obj, raw
}

func idPath(prefix string, obj map[string]any) string {
	return prefix + "/" + jsonNumber(obj["id"])
}

func jsonNumber(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestEntityScenario(t *testing.T) {
	api := newTestAPI(t, true)

	status, created, _ := api.do(t, http.MethodPost, "/entities", `{"name":"Acme"}`)
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", status)
	}
	for _, k := range []string{"description", "siret", "keyLicence", "website"} {
		v, ok := created[k]
		if !ok || v != nil {
			t.Errorf("%s = %v (present=%v), want null", k, v, ok)
		}
	}
	path := idPath("/entities", created)

	status, got, _ := api.do(t, http.MethodGet, path, "")
	if status != http.StatusOK || got["name"] != "Acme" {
		t.Fatalf("get: %d %v", status, got)
	}

	status, updated, _ := api.do(t, http.MethodPut, path, `{"description":"desc"}`)
	if status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", status)
	}
	if updated["name"] != "Acme" || updated["description"] != "desc" {
		t.Errorf("unexpected update result: %v", updated)
	}

	status, _, raw := api.do(t, http.MethodDelete, path, "")
	if status != http.StatusNoContent || len(raw) != 0 {
		t.Fatalf("delete: expected 204 with empty body, got %d %q", status, raw)
	}

	status, _, _ = api.do(t, http.MethodGet, path, "")
	if status != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", status)
	}

	status, _, _ = api.do(t, http.MethodDelete, path, "")
	if status != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", status)
	}
}

func TestAssociationCreatedTwiceConflicts(t *testing.T) {
	api := newTestAPI(t, true)

	_, user, _ := api.do(t, http.MethodPost, "/users",
		`{"name":"Doe","firstName":"Jane","email":"jane@x.io","password":"pw"}`)
	_, entity, _ := api.do(t, http.MethodPost, "/entities", `{"name":"Acme"}`)

	body := `{"user_id":` + jsonNumber(user["id"]) + `,"entity_id":` + jsonNumber(entity["id"]) + `}`

	status, first, _ := api.do(t, http.MethodPost, "/user-entities", body)
	if status != http.StatusCreated {
		t.Fatalf("first create: expected 201, got %d (%v)", status, first)
	}

	status, second, _ := api.do(t, http.MethodPost, "/user-entities", body)
	if status != http.StatusConflict {
		t.Fatalf("second create: expected 409, got %d", status)
	}
	if second["error"] != "association already exists" {
		t.Errorf("unexpected error: %v", second["error"])
	}

	status, _, raw := api.do(t, http.MethodGet, "/user-entities", "")
	if status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected one association, got %d", len(list))
	}
}

func TestUserEndpoints(t *testing.T) {
	api := newTestAPI(t, true)

	t.Run("missing password", func(t *testing.T) {
		status, body, _ := api.do(t, http.MethodPost, "/users",
			`{"name":"Doe","firstName":"Jane","email":"nopw@x.io"}`)
		if status != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", status)
		}
		if body["error"] != "password is required" {
			t.Errorf("unexpected error: %v", body["error"])
		}
		if _, ok := body["details"]; !ok {
			t.Error("expected field details outside production")
		}
	})

	status, created, raw := api.do(t, http.MethodPost, "/users",
		`{"name":"Doe","firstName":"Jane","email":"jane@x.io","password":"s3cret"}`)
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", status)
	}
	if bytes.Contains(raw, []byte("s3cret")) || bytes.Contains(raw, []byte("password")) {
		t.Errorf("response leaks password: %s", raw)
	}
	path := idPath("/users", created)

	t.Run("duplicate email", func(t *testing.T) {
		status, _, _ := api.do(t, http.MethodPost, "/users",
			`{"name":"X","firstName":"Y","email":"jane@x.io","password":"pw"}`)
		if status != http.StatusConflict {
			t.Errorf("expected 409, got %d", status)
		}
	})

	t.Run("patch keeps other fields", func(t *testing.T) {
		status, body, _ := api.do(t, http.MethodPatch, path, `{"firstName":"Janet"}`)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if body["firstName"] != "Janet" || body["email"] != "jane@x.io" || body["name"] != "Doe" {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		status, _, _ := api.do(t, http.MethodPut, path, `{}`)
		if status != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", status)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		status, body, _ := api.do(t, http.MethodPost, "/users", `{"name":`)
		if status != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", status)
		}
		if body["error"] != "invalid request body" {
			t.Errorf("unexpected error: %v", body["error"])
		}
	})

	t.Run("non-integer id", func(t *testing.T) {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			status, _, _ := api.do(t, method, "/users/abc", `{"name":"x"}`)
			if status != http.StatusNotFound {
				t.Errorf("%s /users/abc: expected 404, got %d", method, status)
			}
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		status, body, _ := api.do(t, http.MethodGet, "/users/9999", "")
		if status != http.StatusNotFound || body["error"] != "user not found" {
			t.Errorf("expected 404 user not found, got %d %v", status, body)
		}
	})

	t.Run("unsupported method", func(t *testing.T) {
		status, _, _ := api.do(t, http.MethodPost, path, `{}`)
		if status != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", status)
		}
	})
}

func TestStorageErrorDetails(t *testing.T) {
	tests := []struct {
		name          string
		exposeDetails bool
		wantDetails   bool
	}{
		{"development", true, true},
		{"production", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, tt.exposeDetails)
			api.store.Err = memstore.ErrUnavailable

			status, body, _ := api.do(t, http.MethodGet, "/entities", "")
			if status != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", status)
			}
			if body["error"] != "failed to list entities" {
				t.Errorf("unexpected error: %v", body["error"])
			}

			details, ok := body["details"]
			if ok != tt.wantDetails {
				t.Fatalf("details present = %v, want %v", ok, tt.wantDetails)
			}
			if ok && details != memstore.ErrUnavailable.Error() {
				t.Errorf("details = %v", details)
			}
		})
	}
}

func TestUpdateWithoutBody(t *testing.T) {
	api := newTestAPI(t, true)

	_, user, _ := api.do(t, http.MethodPost, "/users",
		`{"name":"Doe","firstName":"Jane","email":"nobody@x.io","password":"pw"}`)
	_, entity, _ := api.do(t, http.MethodPost, "/entities", `{"name":"Acme"}`)
	_, assoc, _ := api.do(t, http.MethodPost, "/user-entities",
		`{"user_id":`+jsonNumber(user["id"])+`,"entity_id":`+jsonNumber(entity["id"])+`}`)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantError  string
	}{
		{"unknown user", "/users/999", http.StatusNotFound, "user not found"},
		{"unknown entity", "/entities/999", http.StatusNotFound, "entity not found"},
		{"unknown association", "/user-entities/999", http.StatusNotFound, "association not found"},
		{"live user", idPath("/users", user), http.StatusBadRequest, "no valid fields to update"},
		{"live entity", idPath("/entities", entity), http.StatusBadRequest, "no valid fields to update"},
		{"live association", idPath("/user-entities", assoc), http.StatusBadRequest, "no valid fields to update"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, method := range []string{http.MethodPut, http.MethodPatch} {
				status, body, _ := api.do(t, method, tt.path, "")
				if status != tt.wantStatus || body["error"] != tt.wantError {
					t.Errorf("%s %s: got %d %v, want %d %q",
						method, tt.path, status, body["error"], tt.wantStatus, tt.wantError)
				}
			}
		})
	}
}

func TestStreamedBodyOverLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	entities := NewEntityHandler(service.NewEntityService(memstore.New(), nil), logger, true)
	routes := entities.Routes()

	payload := `{"name":"` + strings.Repeat("x", 256) + `"}`

	for _, method := range []string{http.MethodPost, http.MethodPut} {
		path := "/"
		if method == http.MethodPut {
			path = "/1"
		}
		req := httptest.NewRequest(method, path, strings.NewReader(payload))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		req.Body = http.MaxBytesReader(rec, req.Body, 64)

		routes.ServeHTTP(rec, req)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("%s: expected 413, got %d (%s)", method, rec.Code, rec.Body.String())
		}
	}
}

func TestUserUpdateLogsPasswordChange(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"new password", `{"password":"n3w"}`, true},
		{"empty password", `{"password":"","firstName":"Janet"}`, false},
		{"null password", `{"password":null,"firstName":"Janet"}`, false},
		{"no password", `{"firstName":"Janet"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&logs, nil))
			hashPlain := func(p string) (string, error) { return "hashed:" + p, nil }
			svc := service.NewUserService(memstore.New(), hashPlain, nil)

			created, err := svc.CreateUser(context.Background(), service.CreateUserInput{
				Name: "Doe", FirstName: "Jane", Email: "jane@x.io", Password: "pw",
			})
			if err != nil {
				t.Fatalf("create user: %v", err)
			}

			routes := NewUserHandler(svc, logger, true).Routes()
			req := httptest.NewRequest(http.MethodPatch, "/"+strconv.FormatInt(created.ID, 10), strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			routes.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
			}

			var entry map[string]any
			for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
				var record map[string]any
				if err := json.Unmarshal(line, &record); err == nil && record["msg"] == "user_updated" {
					entry = record
				}
			}
			if entry == nil {
				t.Fatalf("no user_updated log in %s", logs.String())
			}
			if entry["password_changed"] != tt.want {
				t.Errorf("password_changed = %v, want %v", entry["password_changed"], tt.want)
			}
		})
	}
}
