package batch

import "encoding/json"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

// buildChatRequest serialises the completion request body for a job. The
// system message is only included when the prompt is non-empty, and
// max_completion_tokens only when a token limit is set. An empty model or
// text yields a nil body, which the transport turns into a bodyless GET.
func buildChatRequest(job jobData) ([]byte, error) {
	if job.model == "" || job.text == "" {
		return nil, nil
	}

	messages := make([]chatMessage, 0, 2)
	if job.prompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: job.prompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: job.text})

	return json.Marshal(chatRequest{
		Model:               job.model,
		Messages:            messages,
		MaxCompletionTokens: job.maxTokens,
	})
}
