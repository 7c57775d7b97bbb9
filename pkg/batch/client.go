// Package batch provides a concurrent, rate-limit-aware batch client for
// chat-completion HTTP APIs such as OpenAI's. Inputs are dispatched
// across a bounded worker pool, one completion request per input, while
// the request and token budgets advertised by the server are respected.
// Results are returned in input order.
package batch

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"

	"github.com/crawlserv/llmbatch/internal/logger"
	"github.com/crawlserv/llmbatch/internal/ratelimit"
)

// DefaultTokensPerCharacter is the ratio used to estimate the token
// count of a text when none is configured.
const DefaultTokensPerCharacter = 0.3

// ProgressFunc receives the completed fraction of a run, in [0,1]. It
// may be invoked from multiple goroutines at once; implementations must
// be safe for concurrent use.
type ProgressFunc func(done float64)

// Client is a batch client bound to one API endpoint and key. It is not
// safe to add inputs or change settings concurrently with Run; each
// in-flight request acts on the settings snapshot taken at its start.
type Client struct {
	mu sync.Mutex // settings

	endpoint     string
	apiKey       string
	extraHeaders []string

	model              string
	prompt             string
	maxTokens          int
	maxWorkers         int
	tokensPerCharacter float64
	progress           ProgressFunc

	running bool

	models []string // immutable after construction

	inputs []string

	resultsMu sync.Mutex
	results   []string

	limits *ratelimit.Ledger
	httpc  *http.Client
}

// NewClient creates a client for the API at endpoint (a base URL ending
// in "/") and fetches the model catalog from "{endpoint}models". Extra
// headers are literal "Name: value" lines sent with every request.
func NewClient(ctx context.Context, endpoint, apiKey string, extraHeaders []string) (*Client, error) {
	c := &Client{
		endpoint:           endpoint,
		apiKey:             apiKey,
		extraHeaders:       slices.Clone(extraHeaders),
		tokensPerCharacter: DefaultTokensPerCharacter,
		limits:             ratelimit.NewLedger(),
		httpc:              &http.Client{},
	}

	models, err := c.fetchModels(ctx)
	if err != nil {
		return nil, err
	}
	c.models = models

	logger.Debug("model catalog fetched", "endpoint", endpoint, "models", len(models))

	return c, nil
}

// fetchModels retrieves and validates the model catalog.
func (c *Client) fetchModels(ctx context.Context) ([]string, error) {
	body, _, err := apiRequest(ctx, c.httpc, c.endpoint+"models", c.apiKey, c.extraHeaders, nil)
	if err != nil {
		return nil, &CatalogError{Reason: "request failed", Err: err}
	}

	var list struct {
		Object json.RawMessage `json:"object"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, &CatalogError{Reason: "response is not an object", Err: err}
	}
	if list.Object == nil || list.Data == nil {
		return nil, &CatalogError{Reason: "response lacks object and data members"}
	}

	var entries []struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(list.Data, &entries); err != nil {
		return nil, &CatalogError{Reason: "data is not an array", Err: err}
	}

	models := make([]string, 0, len(entries))
	for _, entry := range entries {
		var id string
		if err := json.Unmarshal(entry.ID, &id); err != nil {
			return nil, &CatalogError{Reason: "model entry lacks a string id", Err: err}
		}
		models = append(models, id)
	}

	return models, nil
}

// SetModel selects the model to use. The name must appear in the catalog
// fetched at construction.
func (c *Client) SetModel(model string) error {
	if err := c.notRunning("set model"); err != nil {
		return err
	}
	if model == "" {
		return configErrorf("no model given")
	}
	if !slices.Contains(c.models, model) {
		return configErrorf("unknown model %q", model)
	}

	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
	return nil
}

// SetPrompt sets the system prompt sent with every input. An empty
// prompt disables the system message.
func (c *Client) SetPrompt(prompt string) error {
	if err := c.notRunning("set prompt"); err != nil {
		return err
	}
	c.mu.Lock()
	c.prompt = prompt
	c.mu.Unlock()
	return nil
}

// SetMaxTokens sets the maximum number of completion tokens per request.
// Zero disables the limit.
func (c *Client) SetMaxTokens(n int) error {
	if err := c.notRunning("set number of tokens"); err != nil {
		return err
	}
	c.mu.Lock()
	c.maxTokens = n
	c.mu.Unlock()
	return nil
}

// SetMaxWorkers sets the number of concurrent requests. Zero means one
// worker per CPU.
func (c *Client) SetMaxWorkers(n int) error {
	if err := c.notRunning("set number of workers"); err != nil {
		return err
	}
	c.mu.Lock()
	c.maxWorkers = n
	c.mu.Unlock()
	return nil
}

// SetTokensPerCharacter sets the ratio used to estimate token counts
// from text lengths.
func (c *Client) SetTokensPerCharacter(ratio float64) {
	c.mu.Lock()
	c.tokensPerCharacter = ratio
	c.mu.Unlock()
}

// SetProgressCallback registers a function receiving the completed
// fraction of a run. The callback must be safe for concurrent use.
func (c *Client) SetProgressCallback(fn ProgressFunc) {
	c.mu.Lock()
	c.progress = fn
	c.mu.Unlock()
}

// ListModels returns the model catalog cached at construction.
func (c *Client) ListModels() []string {
	return slices.Clone(c.models)
}

// AddText appends one input text.
func (c *Client) AddText(text string) {
	c.mu.Lock()
	c.inputs = append(c.inputs, text)
	c.mu.Unlock()
}

// AddTexts appends multiple input texts.
func (c *Client) AddTexts(texts []string) {
	c.mu.Lock()
	c.inputs = append(c.inputs, texts...)
	c.mu.Unlock()
}

// Results returns the completions of the last run, in input order.
func (c *Client) Results() []string {
	c.resultsMu.Lock()
	defer c.resultsMu.Unlock()
	return slices.Clone(c.results)
}

// Free releases the per-run storage and re-enables the setters. The next
// Run starts from an empty input list.
func (c *Client) Free() {
	c.resultsMu.Lock()
	c.results = nil
	c.resultsMu.Unlock()

	c.mu.Lock()
	c.inputs = nil
	c.running = false
	c.mu.Unlock()
}

// notRunning rejects a settings change between Run and Free.
func (c *Client) notRunning(action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return configErrorf("cannot %s while a run is active", action)
	}
	return nil
}
