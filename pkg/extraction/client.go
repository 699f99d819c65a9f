package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"notafiscal/pkg/client"
	"notafiscal/pkg/config"
	apperrors "notafiscal/pkg/errors"
	"notafiscal/pkg/logger"
)

const (
	JobStatusPending        = "PENDING"
	JobStatusSuccess        = "SUCCESS"
	JobStatusError          = "ERROR"
	JobStatusPartialSuccess = "PARTIAL_SUCCESS"
	JobStatusCancelled      = "CANCELLED"
)

// Provider runs one extraction and returns the extractor's raw result.
type Provider interface {
	ExtractWithAgent(ctx context.Context, path, agentName string) (any, error)
	ExtractWithSchema(ctx context.Context, path string, schema *Schema) (any, error)
}

type Agent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type File struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Job struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (j *Job) Done() bool {
	switch j.Status {
	case JobStatusSuccess, JobStatusPartialSuccess, JobStatusError, JobStatusCancelled:
		return true
	}
	return false
}

func (j *Job) Succeeded() bool {
	return j.Status == JobStatusSuccess || j.Status == JobStatusPartialSuccess
}

// Client talks to the LlamaCloud extraction REST API.
type Client struct {
	http         *client.HttpClient
	timeout      time.Duration
	pollInterval time.Duration
	log          *logger.Logger
}

func NewClient(cfg config.Extraction, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperrors.MissingCredentials(config.EnvLlamaCloudAPIKey)
	}
	if log == nil {
		log = logger.Discard()
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = config.DefaultExtractionPollInterval
	}

	return &Client{
		http:         client.NewHttpClient(cfg.BaseURL).WithBearerToken(cfg.APIKey),
		timeout:      cfg.Timeout,
		pollInterval: pollInterval,
		log:          log,
	}, nil
}

func (c *Client) GetAgent(ctx context.Context, name string) (*Agent, error) {
	var agent Agent
	path := "/api/v1/extraction/extraction-agents/by-name/" + url.PathEscape(name)
	if err := c.getJSON(ctx, path, &agent); err != nil {
		return nil, err
	}
	if agent.ID == "" {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotUsable, name)
	}
	return &agent, nil
}

func (c *Client) UploadFile(ctx context.Context, path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	resp, err := c.http.POSTMultipart(ctx, "/api/v1/files", "upload_file", filepath.Base(path), f, nil)
	if err != nil {
		return nil, err
	}
	var file File
	if err := decode(resp, &file); err != nil {
		return nil, err
	}
	if file.ID == "" {
		return nil, fmt.Errorf("upload of %s returned no file id", path)
	}
	return &file, nil
}

func (c *Client) StartAgentJob(ctx context.Context, agentID, fileID string) (*Job, error) {
	body := map[string]string{
		"extraction_agent_id": agentID,
		"file_id":             fileID,
	}
	return c.postJob(ctx, "/api/v1/extraction/jobs", body)
}

// StartSchemaJob runs a stateless job that uses schema instead of a stored agent.
func (c *Client) StartSchemaJob(ctx context.Context, schema *Schema, fileID string) (*Job, error) {
	body := map[string]any{
		"data_schema": schema.DataSchema,
		"config":      schema.Config,
		"file_id":     fileID,
	}
	return c.postJob(ctx, "/api/v1/extraction/run", body)
}

func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.getJSON(ctx, "/api/v1/extraction/jobs/"+url.PathEscape(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForJob polls until the job reaches a terminal status or ctx ends.
func (c *Client) WaitForJob(ctx context.Context, id string) (*Job, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Done() {
			if !job.Succeeded() {
				detail := job.Error
				if detail == "" {
					detail = "no detail"
				}
				return job, fmt.Errorf("%w: job %s ended with status %s: %s", ErrJobFailed, id, job.Status, detail)
			}
			return job, nil
		}

		c.log.Debug("extraction job pending", "job_id", id, "status", job.Status)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for extraction job %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// GetJobResult returns the decoded result document. Numbers stay json.Number.
func (c *Client) GetJobResult(ctx context.Context, id string) (any, error) {
	resp, err := c.http.GET(ctx, "/api/v1/extraction/jobs/"+url.PathEscape(id)+"/result")
	if err != nil {
		return nil, err
	}
	if err := apiError(resp); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	var result any
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("decode extraction result: %w", err)
	}
	return result, nil
}

func (c *Client) ExtractWithAgent(ctx context.Context, path, agentName string) (any, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	agent, err := c.GetAgent(ctx, agentName)
	if err != nil {
		return nil, err
	}
	file, err := c.UploadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	job, err := c.StartAgentJob(ctx, agent.ID, file.ID)
	if err != nil {
		return nil, err
	}
	c.log.Info("extraction job started", "mode", "agent", "agent", agent.Name, "agent_id", agent.ID, "job_id", job.ID)
	return c.finish(ctx, job)
}

func (c *Client) ExtractWithSchema(ctx context.Context, path string, schema *Schema) (any, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	file, err := c.UploadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	job, err := c.StartSchemaJob(ctx, schema, file.ID)
	if err != nil {
		return nil, err
	}
	c.log.Info("extraction job started", "mode", "schema", "job_id", job.ID)
	return c.finish(ctx, job)
}

func (c *Client) finish(ctx context.Context, job *Job) (any, error) {
	if !job.Succeeded() {
		if _, err := c.WaitForJob(ctx, job.ID); err != nil {
			return nil, err
		}
	}
	return c.GetJobResult(ctx, job.ID)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	resp, err := c.http.GET(ctx, path)
	if err != nil {
		return err
	}
	return decode(resp, target)
}

func (c *Client) postJob(ctx context.Context, path string, body any) (*Job, error) {
	resp, err := c.http.POST(ctx, path, body)
	if err != nil {
		return nil, err
	}
	var job Job
	if err := decode(resp, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, fmt.Errorf("%s returned no job id", path)
	}
	return &job, nil
}

func decode(resp *client.Response, target any) error {
	if err := apiError(resp); err != nil {
		return err
	}
	if err := resp.DecodeJSON(target); err != nil {
		return fmt.Errorf("decode %s response: %w", resp.Request.URL.Path, err)
	}
	return nil
}

func apiError(resp *client.Response) error {
	if resp.OK() {
		return nil
	}
	return &APIError{
		Method:     resp.Request.Method,
		Path:       resp.Request.URL.Path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(resp.Body)),
	}
}
