package batch

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractContent_Success(t *testing.T) {
	body := `{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`

	content, err := extractContent([]byte(body))
	if err != nil {
		t.Fatalf("extractContent failed: %v", err)
	}
	if content != "hi" {
		t.Errorf("content = %q, want %q", content, "hi")
	}
}

func TestExtractContent_UsesFirstChoice(t *testing.T) {
	body := `{"choices":[{"message":{"content":"first"}},{"message":{"content":"second"}}]}`

	content, err := extractContent([]byte(body))
	if err != nil {
		t.Fatalf("extractContent failed: %v", err)
	}
	if content != "first" {
		t.Errorf("content = %q, want %q", content, "first")
	}
}

func TestExtractContent_APIError(t *testing.T) {
	body := `{"error":{"type":"invalid_request_error","message":"bad"}}`

	_, err := extractContent([]byte(body))
	if err == nil {
		t.Fatal("extractContent should fail")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T, want *APIError", err)
	}
	if apiErr.Type != "invalid_request_error" || apiErr.Message != "bad" {
		t.Errorf("got %q/%q", apiErr.Type, apiErr.Message)
	}
	if !strings.Contains(err.Error(), "[invalid_request_error] bad") {
		t.Errorf("error string %q lacks type-prefixed message", err.Error())
	}
}

func TestExtractContent_APIErrorWithoutType(t *testing.T) {
	body := `{"error":{"message":"bad"}}`

	_, err := extractContent([]byte(body))
	if err == nil {
		t.Fatal("extractContent should fail")
	}
	if err.Error() != "bad" {
		t.Errorf("error string = %q, want %q", err.Error(), "bad")
	}
}

func TestExtractContent_MalformedError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"error without message", `{"error":{"type":"x"}}`},
		{"error message not a string", `{"error":{"message":42}}`},
		{"error not an object", `{"error":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractContent([]byte(tt.body))
			if err == nil {
				t.Fatal("extractContent should fail")
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error is %T, want *APIError", err)
			}
		})
	}
}

func TestExtractContent_MalformedSuccess(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json at all`},
		{"not an object", `[1,2,3]`},
		{"no choices", `{"id":"x"}`},
		{"choices not array", `{"choices":"nope"}`},
		{"choices empty", `{"choices":[]}`},
		{"no message", `{"choices":[{}]}`},
		{"message not object", `{"choices":[{"message":"hi"}]}`},
		{"content missing", `{"choices":[{"message":{}}]}`},
		{"content not string", `{"choices":[{"message":{"content":5}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractContent([]byte(tt.body))
			if err == nil {
				t.Fatal("extractContent should fail")
			}
			if !strings.Contains(err.Error(), "could not parse result") {
				t.Errorf("error %q should report a parse failure", err.Error())
			}
		})
	}
}
