package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestHttpClient_SendsBearerToken(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"job-1"}`))
	}))
	defer srv.Close()

	c := NewHttpClient(srv.URL + "/").WithBearerToken("llx-key")
	resp, err := c.POST(context.Background(), "/api/v1/extraction/jobs", map[string]string{"file_id": "f"})
	if err != nil {
		t.Fatalf("POST: %v", err)
	}

	if gotAuth != "Bearer llx-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := resp.DecodeJSON(&body); err != nil || body.ID != "job-1" {
		t.Errorf("DecodeJSON = %+v, %v", body, err)
	}
	if resp.Err() != nil {
		t.Errorf("Err() = %v for a 200", resp.Err())
	}
}

func TestResponse_ErrOnFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"agent not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := NewHttpClient(srv.URL).GET(context.Background(), "/agents/x")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}

	var statusErr *StatusError
	if !errors.As(resp.Err(), &statusErr) {
		t.Fatalf("expected *StatusError, got %v", resp.Err())
	}
	if statusErr.StatusCode != http.StatusNotFound || !strings.Contains(statusErr.Body, "agent not found") {
		t.Errorf("unexpected status error %+v", statusErr)
	}
}

func TestHttpClient_RespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := NewHttpClient(srv.URL).GET(ctx, "/slow"); err == nil {
		t.Fatal("expected a context error")
	}
}

func TestInvoiceClient_ExtractUploadsMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nota.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 test"), 0o600); err != nil {
		t.Fatal(err)
	}

	var gotFile, gotAgent, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/invoices/extract" {
			t.Errorf("path = %s", r.URL.Path)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotFile = string(data)
		gotName = header.Filename
		gotAgent = r.FormValue("agent_name")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := NewInvoiceClient(srv.URL).Extract(context.Background(), path, "Nota Fiscal", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if gotFile != "%PDF-1.4 test" || gotName != "nota.pdf" || gotAgent != "Nota Fiscal" {
		t.Errorf("server saw file=%q name=%q agent=%q", gotFile, gotName, gotAgent)
	}
}

func TestGetErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "message and detail", body: `{"ok":false,"message":"Invoice extraction failed.","error":"job ERROR"}`, want: "Invoice extraction failed. job ERROR"},
		{name: "message only", body: `{"ok":false,"message":"Invoice extraction failed.","error":null}`, want: "Invoice extraction failed."},
		{name: "error only", body: `{"error":"Invalid request body","code":"INVALID_INPUT"}`, want: "Invalid request body"},
		{name: "code only", body: `{"code":"NOT_FOUND"}`, want: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetErrorMessage(&Response{Body: []byte(tt.body)})
			if got != tt.want {
				t.Errorf("GetErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
