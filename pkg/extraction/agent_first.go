package extraction

import (
	"context"
	"fmt"

	"notafiscal/pkg/logger"
	"notafiscal/pkg/model"
)

type Result struct {
	Payload map[string]any
	Mode    string // model.ModeAgent or model.ModeSchema
}

// ExtractAgentFirst runs the named agent and, on any failure, loads the
// schema at schemaPath and retries in schema mode. Only the schema-mode
// error is returned; the agent error is logged and attached as context.
func ExtractAgentFirst(ctx context.Context, p Provider, path, agentName, schemaPath string, log *logger.Logger) (*Result, error) {
	if log == nil {
		log = logger.Discard()
	}

	log.Info("Using agent", "agent", agentName, "file", path)
	payload, agentErr := runAgent(ctx, p, path, agentName)
	if agentErr == nil {
		return &Result{Payload: payload, Mode: model.ModeAgent}, nil
	}
	if ctx.Err() != nil {
		return nil, agentErr
	}

	log.Warn("Agent extraction failed, fallback schema mode enabled",
		"agent", agentName,
		"schema", schemaPath,
		"error", agentErr,
	)

	schema, err := LoadSchema(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("%w (agent mode: %v)", err, agentErr)
	}
	raw, err := p.ExtractWithSchema(ctx, path, schema)
	if err != nil {
		return nil, fmt.Errorf("%w (agent mode: %v)", err, agentErr)
	}
	payload, err = UnwrapRunData(raw)
	if err != nil {
		return nil, err
	}
	return &Result{Payload: payload, Mode: model.ModeSchema}, nil
}

func runAgent(ctx context.Context, p Provider, path, agentName string) (map[string]any, error) {
	raw, err := p.ExtractWithAgent(ctx, path, agentName)
	if err != nil {
		return nil, err
	}
	return UnwrapRunData(raw)
}
