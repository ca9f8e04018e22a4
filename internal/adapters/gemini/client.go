// Package gemini implements the AI-fallback generator and the query
// embedder on Google's Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"zivai/internal/ports"
)

// apologyText is returned instead of any provider error; the user always
// gets a reply.
const apologyText = "Sorry, I encountered an error while processing your request."

// guidelines is the standing system instruction for free-form replies.
const guidelines = `You are an AI assistant that provides accurate, concise information. Follow these rules:
1. Always verify information from reliable sources before responding
2. If unsure about facts, state that you're uncertain
3. Keep responses clear and to the point
4. Cite sources when possible
5. Avoid speculation or unverified claims
6. If a question is ambiguous, ask for clarification
7. Maintain a professional, helpful tone
8. For location questions, provide the actual address, but if not sure then state that you are not sure
9. Every time you answer from your own reasoning, mention that the response is AI generated and should be used for reference only
10. Do not use # or many *, rather use only a single pair of * to set a heading apart from general text`

// historyWindow caps how many recent turns go into the prompt.
const historyWindow = 5

// Client implements ports.Generator.
type Client struct {
	client *genai.Client
	model  string
}

// New creates a Gemini client.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{client: client, model: model}, nil
}

// Generate builds a reply from the message, recent history turns and
// optional retrieval context. Provider errors degrade to the stock apology
// rather than propagating.
func (c *Client) Generate(ctx context.Context, message string, history []ports.HistoryTurn, retrieved []string) (string, error) {
	prompt := buildPrompt(message, history, retrieved)

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(guidelines, genai.RoleUser),
		},
	)
	if err != nil {
		return apologyText, nil
	}

	text := resp.Text()
	if text == "" {
		return apologyText, nil
	}
	return text, nil
}

// buildPrompt assembles the generation prompt: retrieval context first, then
// the tail of the conversation, then the current question.
func buildPrompt(message string, history []ports.HistoryTurn, retrieved []string) string {
	var parts []string

	if len(retrieved) > 0 {
		parts = append(parts, "Relevant context from previous conversations:")
		parts = append(parts, retrieved...)
	}

	if len(history) > 0 {
		tail := history
		if len(tail) > historyWindow {
			tail = tail[len(tail)-historyWindow:]
		}
		parts = append(parts, "Recent conversation:")
		for _, turn := range tail {
			role := "User"
			if turn.Role == "assistant" {
				role = "Assistant"
			}
			parts = append(parts, fmt.Sprintf("%s: %s", role, turn.Text))
		}
	}

	parts = append(parts, fmt.Sprintf("User's current question: %s", message))
	parts = append(parts, "Please provide a helpful response:")

	return strings.Join(parts, "\n")
}

// Embed generates a retrieval-query embedding for the text. Used by the
// vector retriever.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if model == "" {
		model = "gemini-embedding-001"
	}

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := c.client.Models.EmbedContent(ctx, model, contents,
		&genai.EmbedContentConfig{
			TaskType: "RETRIEVAL_QUERY",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}
