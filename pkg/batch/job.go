package batch

// jobData is the immutable per-request snapshot of the client settings,
// taken under the settings lock when a worker starts. It decouples an
// in-flight request from concurrent setter calls.
type jobData struct {
	endpoint     string
	apiKey       string
	model        string
	prompt       string
	maxTokens    int
	extraHeaders []string
	text         string

	tokensPerCharacter float64
}

// snapshot copies the current settings into a jobData.
func (c *Client) snapshot() jobData {
	c.mu.Lock()
	defer c.mu.Unlock()

	headers := make([]string, len(c.extraHeaders))
	copy(headers, c.extraHeaders)

	return jobData{
		endpoint:     c.endpoint,
		apiKey:       c.apiKey,
		model:        c.model,
		prompt:       c.prompt,
		maxTokens:    c.maxTokens,
		extraHeaders: headers,

		tokensPerCharacter: c.tokensPerCharacter,
	}
}
