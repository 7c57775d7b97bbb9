package batch

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/crawlserv/llmbatch/internal/logger"
)

// Run dispatches one completion request per input across at most
// maxWorkers concurrent workers and blocks until every input has a
// result or a worker has failed. Inputs are handed out in input order;
// results[i] always corresponds to inputs[i]. The first error wins: it
// stops further dispatch, in-flight requests are awaited, and the error
// is returned.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.model == "" {
		c.mu.Unlock()
		return configErrorf("no model selected")
	}
	c.running = true
	workers := c.maxWorkers
	inputs := c.inputs
	c.mu.Unlock()

	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}

	c.resultsMu.Lock()
	c.results = make([]string, len(inputs))
	c.resultsMu.Unlock()

	logger.Debug("run starting", "inputs", len(inputs), "workers", workers)

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, workers)
		done     atomic.Int64
		failed   atomic.Bool
		firstMu  sync.Mutex
		firstErr error
	)

	fail := func(err error) {
		firstMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		firstMu.Unlock()
		failed.Store(true)
	}

	for i := range inputs {
		if failed.Load() {
			break
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			fail(ctx.Err())
		}
		if failed.Load() {
			break
		}

		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := c.process(ctx, index, inputs, &done); err != nil {
				logger.Debug("worker failed", "index", index, "error", err)
				fail(err)
			}
		}(i)
	}

	wg.Wait()

	firstMu.Lock()
	defer firstMu.Unlock()
	return firstErr
}

// process runs the per-job protocol for the input at index: snapshot the
// settings, pass rate-limit admission, issue the request, classify the
// reply, store the result, feed the response headers back into the
// ledger and signal progress.
func (c *Client) process(ctx context.Context, index int, inputs []string, done *atomic.Int64) error {
	job := c.snapshot()
	job.text = inputs[index]

	estTokens := int64(float64(len(job.text)) * job.tokensPerCharacter)
	if err := c.limits.Acquire(ctx, estTokens); err != nil {
		return err
	}

	body, err := buildChatRequest(job)
	if err != nil {
		return &APIError{Message: "could not serialise request", Err: err}
	}

	reply, header, err := apiRequest(ctx, c.httpc, job.endpoint+"chat/completions", job.apiKey, job.extraHeaders, body)
	if err != nil {
		return &APIError{Message: "request failed: " + err.Error(), Err: err}
	}

	content, err := extractContent(reply)
	if err != nil {
		return err
	}

	c.resultsMu.Lock()
	c.results[index] = content
	c.resultsMu.Unlock()

	c.limits.Ingest(header)

	n := done.Add(1)
	if cb := c.progressFunc(); cb != nil {
		cb(float64(n) / float64(len(inputs)))
	}

	return nil
}

// progressFunc reads the registered progress callback.
func (c *Client) progressFunc() ProgressFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}
