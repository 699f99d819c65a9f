package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"notafiscal/pkg/config"
	apperrors "notafiscal/pkg/errors"
	"notafiscal/pkg/logger"
	"notafiscal/pkg/model"
)

func TestUnwrapRunData(t *testing.T) {
	invoice := map[string]any{"numero_fatura": "1"}

	tests := []struct {
		name    string
		in      any
		want    map[string]any
		wantErr error
	}{
		{name: "plain object", in: invoice, want: invoice},
		{name: "data field", in: map[string]any{"data": invoice, "extraction_metadata": map[string]any{}}, want: invoice},
		{name: "list takes first", in: []any{map[string]any{"data": invoice}, "ignored"}, want: invoice},
		{name: "empty list", in: []any{}, wantErr: ErrEmptyResult},
		{name: "data not object", in: map[string]any{"data": "text"}, wantErr: ErrNotAnObject},
		{name: "string", in: "hello", wantErr: ErrNotAnObject},
		{name: "nil", in: nil, wantErr: ErrNotAnObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnwrapRunData(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got["numero_fatura"] != "1" {
				t.Errorf("got %v", got)
			}
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSchema(t *testing.T) {
	dir := t.TempDir()

	wrapped := writeFile(t, dir, "wrapped.json", `{"dataSchema":{"type":"object"},"config":{"extraction_mode":"BALANCED"}}`)
	s, err := LoadSchema(wrapped)
	if err != nil {
		t.Fatalf("LoadSchema() error = %v", err)
	}
	if s.DataSchema["type"] != "object" || s.Config["extraction_mode"] != "BALANCED" {
		t.Errorf("schema = %+v", s)
	}

	bare := writeFile(t, dir, "bare.json", `{"type":"object","properties":{}}`)
	s, err = LoadSchema(bare)
	if err != nil {
		t.Fatalf("LoadSchema() error = %v", err)
	}
	if s.DataSchema["type"] != "object" || len(s.Config) != 0 {
		t.Errorf("bare schema = %+v", s)
	}

	missing := filepath.Join(dir, "missing.json")
	if _, err := LoadSchema(missing); err == nil || err.Error() != "fallback schema file not found: "+missing {
		t.Errorf("missing err = %v", err)
	}

	broken := writeFile(t, dir, "broken.json", `{"dataSchema":`)
	if _, err := LoadSchema(broken); err == nil || err.Error() != "fallback schema is invalid JSON: "+broken {
		t.Errorf("broken err = %v", err)
	}

	yamlSchema := writeFile(t, dir, "schema.yaml", "dataSchema:\n  type: object\n  required: [numero_fatura]\nconfig:\n  extraction_mode: FAST\n")
	s, err = LoadSchema(yamlSchema)
	if err != nil {
		t.Fatalf("LoadSchema(yaml) error = %v", err)
	}
	if s.DataSchema["type"] != "object" || s.Config["extraction_mode"] != "FAST" {
		t.Errorf("yaml schema = %+v", s)
	}

	brokenYAML := writeFile(t, dir, "broken.yml", "dataSchema: [unterminated\n")
	if _, err := LoadSchema(brokenYAML); err == nil || err.Error() != "fallback schema is invalid YAML: "+brokenYAML {
		t.Errorf("broken yaml err = %v", err)
	}

	badShape := writeFile(t, dir, "shape.json", `{"dataSchema":[1]}`)
	if _, err := LoadSchema(badShape); err == nil || !strings.Contains(err.Error(), "dataSchema must be an object") {
		t.Errorf("shape err = %v", err)
	}
}

func TestResolvePath(t *testing.T) {
	base := t.TempDir()
	if got := ResolvePath("schema.json", base); got != filepath.Join(base, "schema.json") {
		t.Errorf("relative = %q", got)
	}
	abs := filepath.Join(base, "x", "..", "y.json")
	if got := ResolvePath(abs, "/elsewhere"); got != filepath.Join(base, "y.json") {
		t.Errorf("absolute = %q", got)
	}
}

func TestResolveInputPath_PrefersWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "nota.pdf", "%PDF")
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if got := ResolveInputPath("nota.pdf"); got != filepath.Join(dir, "nota.pdf") {
		t.Errorf("ResolveInputPath() = %q", got)
	}
}

func TestInspectDocument(t *testing.T) {
	dir := t.TempDir()
	png := writeFile(t, dir, "scan.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	text := writeFile(t, dir, "notes.txt", "just some text")
	empty := writeFile(t, dir, "empty.pdf", "")
	fakePDF := writeFile(t, dir, "fake.pdf", "%PDF-1.4\nthis is not really a pdf")

	doc, err := InspectDocument(png)
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if doc.MimeType != MimePNG || doc.Name != "scan.png" || doc.PageCount != 0 {
		t.Errorf("png doc = %+v", doc)
	}

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing", filepath.Join(dir, "nope.pdf"), apperrors.CodeInputNotFound},
		{"directory", dir, apperrors.CodeInputNotFound},
		{"empty", empty, apperrors.CodeInvalidInput},
		{"unsupported", text, apperrors.CodeUnsupportedMedia},
		{"unreadable pdf", fakePDF, apperrors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InspectDocument(tt.path)
			if !apperrors.HasCode(err, tt.code) {
				t.Errorf("err = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestAPIError_ToAppError(t *testing.T) {
	unauthorized := (&APIError{StatusCode: http.StatusUnauthorized}).ToAppError()
	if unauthorized.Code != apperrors.CodeUnauthorized {
		t.Errorf("401 code = %s", unauthorized.Code)
	}
	failed := (&APIError{StatusCode: http.StatusBadGateway}).ToAppError()
	if failed.Code != apperrors.CodeExtractionFailed {
		t.Errorf("502 code = %s", failed.Code)
	}
}

// fakeLlamaCloud serves the subset of the extraction API used by Client.
type fakeLlamaCloud struct {
	mu          sync.Mutex
	agents      map[string]string
	polls       int
	pendingFor  int
	finalStatus string
	result      string
	jobBodies   []map[string]any
	uploads     []string
}

func (f *fakeLlamaCloud) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/extraction/extraction-agents/by-name/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer llx-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		id, ok := f.agents[r.PathValue("name")]
		if !ok {
			http.Error(w, `{"detail":"agent not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "name": r.PathValue("name")})
	})
	mux.HandleFunc("POST /api/v1/files", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("upload_file")
		if err != nil {
			t.Errorf("upload: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = io.Copy(io.Discard, file)
		f.mu.Lock()
		f.uploads = append(f.uploads, header.Filename)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"id":"file-1","name":"` + header.Filename + `"}`))
	})
	startJob := func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.jobBodies = append(f.jobBodies, body)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"id":"job-1","status":"PENDING"}`))
	}
	mux.HandleFunc("POST /api/v1/extraction/jobs", startJob)
	mux.HandleFunc("POST /api/v1/extraction/run", startJob)
	mux.HandleFunc("GET /api/v1/extraction/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		status := JobStatusPending
		if f.polls > f.pendingFor {
			status = f.finalStatus
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"id": r.PathValue("id"), "status": status, "error": "boom"})
	})
	mux.HandleFunc("GET /api/v1/extraction/jobs/{id}/result", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(f.result))
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeLlamaCloud) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	c, err := NewClient(config.Extraction{
		APIKey:       "llx-test",
		BaseURL:      srv.URL,
		Timeout:      5 * time.Second,
		PollInterval: time.Millisecond,
	}, logger.Discard())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(config.Extraction{BaseURL: "http://localhost"}, nil)
	if !apperrors.HasCode(err, apperrors.CodeMissingCredentials) {
		t.Fatalf("err = %v", err)
	}
	if err.(*apperrors.AppError).Message != "LLAMA_CLOUD_API_KEY is not set." {
		t.Errorf("message = %q", err.(*apperrors.AppError).Message)
	}
}

func TestClient_ExtractWithAgent(t *testing.T) {
	fake := &fakeLlamaCloud{
		agents:      map[string]string{"Nota Fiscal": "agent-1"},
		pendingFor:  2,
		finalStatus: JobStatusSuccess,
		result:      `{"data":{"numero_fatura":"123","subtotal_itens_centavos":9007199254740993},"extraction_metadata":{}}`,
	}
	c := newTestClient(t, fake)
	doc := writeFile(t, t.TempDir(), "nota.pdf", "%PDF")

	raw, err := c.ExtractWithAgent(context.Background(), doc, "Nota Fiscal")
	if err != nil {
		t.Fatalf("ExtractWithAgent() error = %v", err)
	}
	payload, err := UnwrapRunData(raw)
	if err != nil {
		t.Fatalf("UnwrapRunData() error = %v", err)
	}
	if payload["numero_fatura"] != "123" {
		t.Errorf("payload = %v", payload)
	}
	if n, ok := payload["subtotal_itens_centavos"].(json.Number); !ok || n.String() != "9007199254740993" {
		t.Errorf("large number lost precision: %#v", payload["subtotal_itens_centavos"])
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.polls != 3 {
		t.Errorf("polls = %d, want 3", fake.polls)
	}
	if len(fake.uploads) != 1 || fake.uploads[0] != "nota.pdf" {
		t.Errorf("uploads = %v", fake.uploads)
	}
	if got := fake.jobBodies[0]["extraction_agent_id"]; got != "agent-1" {
		t.Errorf("extraction_agent_id = %v", got)
	}
}

func TestClient_JobFailure(t *testing.T) {
	fake := &fakeLlamaCloud{
		agents:      map[string]string{"Nota Fiscal": "agent-1"},
		finalStatus: JobStatusError,
	}
	c := newTestClient(t, fake)
	doc := writeFile(t, t.TempDir(), "nota.pdf", "%PDF")

	_, err := c.ExtractWithAgent(context.Background(), doc, "Nota Fiscal")
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("err = %v, want ErrJobFailed", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should carry job detail: %v", err)
	}
}

func TestClient_UnknownAgentIsAPIError(t *testing.T) {
	c := newTestClient(t, &fakeLlamaCloud{agents: map[string]string{}})

	_, err := c.GetAgent(context.Background(), "Missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v", err)
	}
}

func TestClient_ExtractWithSchema(t *testing.T) {
	fake := &fakeLlamaCloud{finalStatus: JobStatusPartialSuccess, result: `[{"data":{"numero_fatura":"9"}}]`}
	c := newTestClient(t, fake)
	doc := writeFile(t, t.TempDir(), "nota.png", "png")

	schema := &Schema{DataSchema: map[string]any{"type": "object"}, Config: map[string]any{}}
	raw, err := c.ExtractWithSchema(context.Background(), doc, schema)
	if err != nil {
		t.Fatalf("ExtractWithSchema() error = %v", err)
	}
	payload, err := UnwrapRunData(raw)
	if err != nil || payload["numero_fatura"] != "9" {
		t.Fatalf("payload = %v, err = %v", payload, err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	body := fake.jobBodies[0]
	if body["file_id"] != "file-1" || body["data_schema"] == nil {
		t.Errorf("run body = %v", body)
	}
}

type mockProvider struct {
	ExtractWithAgentFunc  func(ctx context.Context, path, agentName string) (any, error)
	ExtractWithSchemaFunc func(ctx context.Context, path string, schema *Schema) (any, error)
}

func (m *mockProvider) ExtractWithAgent(ctx context.Context, path, agentName string) (any, error) {
	return m.ExtractWithAgentFunc(ctx, path, agentName)
}

func (m *mockProvider) ExtractWithSchema(ctx context.Context, path string, schema *Schema) (any, error) {
	return m.ExtractWithSchemaFunc(ctx, path, schema)
}

func TestExtractAgentFirst(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", `{"dataSchema":{"type":"object"}}`)
	agentErr := errors.New("agent not found")

	t.Run("agent succeeds", func(t *testing.T) {
		p := &mockProvider{
			ExtractWithAgentFunc: func(context.Context, string, string) (any, error) {
				return map[string]any{"data": map[string]any{"numero_fatura": "A"}}, nil
			},
			ExtractWithSchemaFunc: func(context.Context, string, *Schema) (any, error) {
				t.Fatal("schema mode should not run")
				return nil, nil
			},
		}
		res, err := ExtractAgentFirst(context.Background(), p, "doc.pdf", "Nota Fiscal", schemaPath, nil)
		if err != nil || res.Mode != model.ModeAgent || res.Payload["numero_fatura"] != "A" {
			t.Fatalf("res = %+v, err = %v", res, err)
		}
	})

	t.Run("falls back to schema", func(t *testing.T) {
		var gotSchema *Schema
		p := &mockProvider{
			ExtractWithAgentFunc: func(context.Context, string, string) (any, error) { return nil, agentErr },
			ExtractWithSchemaFunc: func(_ context.Context, _ string, s *Schema) (any, error) {
				gotSchema = s
				return map[string]any{"numero_fatura": "S"}, nil
			},
		}
		res, err := ExtractAgentFirst(context.Background(), p, "doc.pdf", "Nota Fiscal", schemaPath, nil)
		if err != nil || res.Mode != model.ModeSchema || res.Payload["numero_fatura"] != "S" {
			t.Fatalf("res = %+v, err = %v", res, err)
		}
		if gotSchema == nil || gotSchema.DataSchema["type"] != "object" {
			t.Errorf("schema = %+v", gotSchema)
		}
	})

	t.Run("agent returns non-object", func(t *testing.T) {
		p := &mockProvider{
			ExtractWithAgentFunc:  func(context.Context, string, string) (any, error) { return []any{}, nil },
			ExtractWithSchemaFunc: func(context.Context, string, *Schema) (any, error) { return map[string]any{}, nil },
		}
		res, err := ExtractAgentFirst(context.Background(), p, "doc.pdf", "Nota Fiscal", schemaPath, nil)
		if err != nil || res.Mode != model.ModeSchema {
			t.Fatalf("res = %+v, err = %v", res, err)
		}
	})

	t.Run("missing schema after agent failure", func(t *testing.T) {
		p := &mockProvider{
			ExtractWithAgentFunc: func(context.Context, string, string) (any, error) { return nil, agentErr },
		}
		missing := filepath.Join(dir, "nope.json")
		_, err := ExtractAgentFirst(context.Background(), p, "doc.pdf", "Nota Fiscal", missing, nil)
		if err == nil || !strings.HasPrefix(err.Error(), "fallback schema file not found: "+missing) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("schema result not an object", func(t *testing.T) {
		p := &mockProvider{
			ExtractWithAgentFunc:  func(context.Context, string, string) (any, error) { return nil, agentErr },
			ExtractWithSchemaFunc: func(context.Context, string, *Schema) (any, error) { return "text", nil },
		}
		_, err := ExtractAgentFirst(context.Background(), p, "doc.pdf", "Nota Fiscal", schemaPath, nil)
		if !errors.Is(err, ErrNotAnObject) {
			t.Fatalf("err = %v", err)
		}
	})
}
