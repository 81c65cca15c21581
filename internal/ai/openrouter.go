// Package ai generates reflection texts through the OpenRouter
// chat-completions API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const apiURL = "https://openrouter.ai/api/v1/chat/completions"

const reflectionPrompt = `You are an empathetic assistant that reads personal journal entries (called "capsules") written by users to their future selves.
For each capsule, generate a short, thoughtful reflection that offers encouragement, insight, or a gentle observation about the entry.
Do not summarize the entry; instead, respond as if you are a supportive friend, highlighting the emotional tone, growth, or hopes expressed.
Keep your reflection to 2-3 sentences.
If the entry is not a personal memory or journal, politely respond: "This entry does not appear to be a personal memory or reflection."
Also don't include quotes in your response.
Capsule Entry:
"%s"

AI Reflection:`

type OpenRouter struct {
	APIKey string
	Model  string

	Client *http.Client
}

func NewOpenRouter(apiKey, model string) *OpenRouter {
	return &OpenRouter{
		APIKey: apiKey,
		Model:  model,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Reflect produces a short supportive commentary on a capsule entry.
func (o *OpenRouter) Reflect(ctx context.Context, capsuleContent string) (string, error) {
	if o.APIKey == "" {
		return "", errors.New("openrouter: no api key configured")
	}

	payload := chatRequest{
		Model: o.Model,
		Messages: []message{
			{Role: "user", Content: fmt.Sprintf(reflectionPrompt, capsuleContent)},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openrouter: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openrouter: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openrouter: empty response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
