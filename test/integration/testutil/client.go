//go:build integration

package testutil

import (
	"context"
	"testing"
	"time"

	"notafiscal/pkg/client"
)

// Client wraps the service client with fatal-on-error helpers.
type Client struct {
	*client.InvoiceClient
	http *client.HttpClient
}

func NewClient(baseURL string) *Client {
	return &Client{
		InvoiceClient: client.NewInvoiceClient(baseURL),
		http:          client.NewHttpClient(baseURL),
	}
}

func (c *Client) WaitForHealthy(t *testing.T, maxWait time.Duration) {
	t.Helper()
	if err := c.http.WaitForHealthy(context.Background(), maxWait); err != nil {
		t.Fatalf("service not healthy: %v", err)
	}
}

func AssertStatusCode(t *testing.T, resp *client.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(resp.Body))
	}
}
