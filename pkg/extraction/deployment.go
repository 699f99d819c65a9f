package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"notafiscal/pkg/client"
	"notafiscal/pkg/config"
	apperrors "notafiscal/pkg/errors"
	"notafiscal/pkg/logger"
)

const (
	HandlerStatusCompleted = "completed"
	HandlerStatusFailed    = "failed"
	HandlerStatusCancelled = "cancelled"

	DefaultWorkflow         = "default"
	DefaultSmokePollEvery   = 2 * time.Second
	DefaultSmokeMaxPolls    = 45
	DeploymentClientTimeout = 60 * time.Second
)

var ErrNoHandlerPayload = errors.New("no JSON result payload found in handler response")

// HandlerStatus is one poll of a deployed workflow run.
type HandlerStatus struct {
	HandlerID string `json:"handler_id"`
	Status    string `json:"status"`
	Error     any    `json:"error"`
	Result    any    `json:"result"`
}

func (h *HandlerStatus) Done() bool {
	switch h.Status {
	case HandlerStatusCompleted, HandlerStatusFailed, HandlerStatusCancelled:
		return true
	}
	return false
}

// Payload returns result.value.result when it is an object, else result.value.
func (h *HandlerStatus) Payload() (map[string]any, error) {
	result, _ := h.Result.(map[string]any)
	value, ok := result["value"].(map[string]any)
	if !ok {
		return nil, ErrNoHandlerPayload
	}
	if inner, ok := value["result"].(map[string]any); ok {
		return inner, nil
	}
	return value, nil
}

// DeploymentClient drives a deployed extraction workflow.
type DeploymentClient struct {
	http      *client.HttpClient
	pollEvery time.Duration
	maxPolls  int
	log       *logger.Logger
}

func NewDeploymentClient(deployURL, apiKey string, pollEvery time.Duration, maxPolls int, log *logger.Logger) (*DeploymentClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperrors.MissingCredentials(config.EnvLlamaCloudAPIKey)
	}
	if strings.TrimSpace(deployURL) == "" {
		return nil, apperrors.InvalidInput("deployment URL is required")
	}
	if pollEvery <= 0 {
		pollEvery = DefaultSmokePollEvery
	}
	if maxPolls <= 0 {
		maxPolls = DefaultSmokeMaxPolls
	}
	if log == nil {
		log = logger.Discard()
	}

	httpClient := client.NewHttpClient(deployURL).WithBearerToken(apiKey)
	httpClient.HTTPClient.Timeout = DeploymentClientTimeout
	return &DeploymentClient{http: httpClient, pollEvery: pollEvery, maxPolls: maxPolls, log: log}, nil
}

func (d *DeploymentClient) ListWorkflows(ctx context.Context) ([]string, error) {
	resp, err := d.http.GET(ctx, "/workflows")
	if err != nil {
		return nil, err
	}
	var body struct {
		Workflows []string `json:"workflows"`
	}
	if err := decode(resp, &body); err != nil {
		return nil, err
	}
	return body.Workflows, nil
}

func (d *DeploymentClient) RunNoWait(ctx context.Context, workflow string, startEvent map[string]any) (string, error) {
	resp, err := d.http.POST(ctx, "/workflows/"+url.PathEscape(workflow)+"/run-nowait", map[string]any{
		"start_event": startEvent,
	})
	if err != nil {
		return "", err
	}
	var body struct {
		HandlerID string `json:"handler_id"`
	}
	if err := decode(resp, &body); err != nil {
		return "", err
	}
	if body.HandlerID == "" {
		return "", errors.New("missing handler_id in run-nowait response")
	}
	return body.HandlerID, nil
}

func (d *DeploymentClient) GetHandler(ctx context.Context, handlerID string) (*HandlerStatus, error) {
	resp, err := d.http.GET(ctx, "/handlers/"+url.PathEscape(handlerID))
	if err != nil {
		return nil, err
	}
	if err := apiError(resp); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	var status HandlerStatus
	if err := dec.Decode(&status); err != nil {
		return nil, fmt.Errorf("decode handler %s: %w", handlerID, err)
	}
	return &status, nil
}

// WaitForHandler polls up to maxPolls times and returns the last status seen.
func (d *DeploymentClient) WaitForHandler(ctx context.Context, handlerID string) (*HandlerStatus, error) {
	var last *HandlerStatus
	for i := 0; i < d.maxPolls; i++ {
		status, err := d.GetHandler(ctx, handlerID)
		if err != nil {
			return nil, err
		}
		last = status
		if status.Done() {
			return status, nil
		}
		d.log.Debug("workflow handler running", "handler_id", handlerID, "status", status.Status, "poll", i+1)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.pollEvery):
		}
	}
	if last == nil {
		return nil, errors.New("no handler response received")
	}
	return last, nil
}

type SmokeRequest struct {
	Workflow  string
	File      string
	AgentName string
}

type SmokeResult struct {
	Workflow string
	Status   string
	Payload  map[string]any
}

// Smoke runs the deployed workflow once and checks that it completed.
func (d *DeploymentClient) Smoke(ctx context.Context, req SmokeRequest) (*SmokeResult, error) {
	workflows, err := d.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(workflows, req.Workflow) {
		return nil, fmt.Errorf("Workflow not found: %s. Available: %v", req.Workflow, workflows)
	}

	handlerID, err := d.RunNoWait(ctx, req.Workflow, map[string]any{
		"file":       req.File,
		"agent_name": req.AgentName,
	})
	if err != nil {
		return nil, err
	}
	d.log.Info("workflow started", "workflow", req.Workflow, "handler_id", handlerID)

	status, err := d.WaitForHandler(ctx, handlerID)
	if err != nil {
		return nil, err
	}
	if status.Status != HandlerStatusCompleted {
		return nil, fmt.Errorf("workflow did not complete successfully: %s", status.Status)
	}
	if errorSet(status.Error) {
		return nil, fmt.Errorf("workflow returned error: %v", status.Error)
	}

	payload, err := status.Payload()
	if err != nil {
		return nil, err
	}
	return &SmokeResult{Workflow: req.Workflow, Status: status.Status, Payload: payload}, nil
}

func errorSet(v any) bool {
	switch e := v.(type) {
	case nil:
		return false
	case string:
		return e != ""
	case bool:
		return e
	case map[string]any:
		return len(e) > 0
	case []any:
		return len(e) > 0
	default:
		return true
	}
}
