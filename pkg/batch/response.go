package batch

import (
	"encoding/json"
	"fmt"
)

// chatResponse holds the two surfaces a completion reply can carry. Both
// members stay raw so a malformed shape can be told apart from a missing
// one.
type chatResponse struct {
	Error   json.RawMessage `json:"error"`
	Choices json.RawMessage `json:"choices"`
}

type apiErrorBody struct {
	Message *string `json:"message"`
	Type    string  `json:"type"`
}

type chatChoice struct {
	Message json.RawMessage `json:"message"`
}

type choiceMessage struct {
	Content json.RawMessage `json:"content"`
}

// extractContent returns the assistant content of a completion reply, or
// classifies the failure: an error object with a string message becomes
// an APIError carrying its type and message, a malformed error object
// becomes a generic APIError, and everything else becomes a parse failure
// quoting the body.
func extractContent(body []byte) (string, error) {
	var reply chatResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", parseError(err.Error(), body)
	}

	if reply.Error != nil {
		var apiErr apiErrorBody
		if err := json.Unmarshal(reply.Error, &apiErr); err != nil || apiErr.Message == nil {
			return "", &APIError{Message: "API returned an unrecognized error"}
		}
		return "", &APIError{Type: apiErr.Type, Message: *apiErr.Message}
	}

	if reply.Choices == nil {
		return "", parseError("no choices", body)
	}

	var choices []chatChoice
	if err := json.Unmarshal(reply.Choices, &choices); err != nil {
		return "", parseError("choices is not an array", body)
	}
	if len(choices) == 0 {
		return "", parseError("choices is empty", body)
	}
	if choices[0].Message == nil {
		return "", parseError("first choice has no message", body)
	}

	var msg choiceMessage
	if err := json.Unmarshal(choices[0].Message, &msg); err != nil {
		return "", parseError("message is not an object", body)
	}

	var content string
	if err := json.Unmarshal(msg.Content, &content); err != nil {
		return "", parseError("message content is not a string", body)
	}

	return content, nil
}

func parseError(why string, body []byte) *APIError {
	return &APIError{Message: fmt.Sprintf("could not parse result: %s - %s", why, body)}
}
