// Package extraction turns an invoice document into a raw JSON object using
// the LlamaCloud extraction API. Agent mode runs a published extraction agent.
// Schema mode runs a stateless job against a local schema file.
// ExtractAgentFirst tries the former and falls back to the latter.
//
// The returned payload is the extractor's raw output; callers hand it to
// pkg/sanitizer before trusting its shape.
package extraction
