package client

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// InvoiceClient calls a running invoices service.
type InvoiceClient struct {
	httpClient *HttpClient
}

func NewInvoiceClient(baseURL string) *InvoiceClient {
	return &InvoiceClient{
		httpClient: NewHttpClient(baseURL),
	}
}

// Extract uploads the document at path. Empty agentName or fallbackSchema leave the
// server defaults in place.
func (c *InvoiceClient) Extract(ctx context.Context, path, agentName, fallbackSchema string) (*Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fields := map[string]string{}
	if agentName != "" {
		fields["agent_name"] = agentName
	}
	if fallbackSchema != "" {
		fields["fallback_schema"] = fallbackSchema
	}

	return c.httpClient.POSTMultipart(ctx, "/api/v1/invoices/extract", "file", filepath.Base(path), f, fields)
}

func (c *InvoiceClient) Sanitize(ctx context.Context, raw []byte) (*Response, error) {
	return c.httpClient.POSTRaw(ctx, "/api/v1/invoices/sanitize", raw)
}

func (c *InvoiceClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/invoices/"+url.PathEscape(id))
}
