package agent

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/anvilcode/anvil/internal/config"
	"github.com/anvilcode/anvil/internal/logging"
)

// TestOpenAIAgentLive exercises a real round trip against the OpenAI API.
// It only runs when OPENAI_API_KEY is set, since it makes a live network call.
func TestOpenAIAgentLive(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping test: OPENAI_API_KEY not set")
	}

	cfg := &config.Config{
		APIKey:       apiKey,
		Model:        "gpt-3.5-turbo",
		APITimeout:   30,
		ApprovalMode: config.Suggest,
	}

	logger := logging.NewNilLogger()

	openaiAgent, err := NewOpenAIAgent(cfg, logger)
	if err != nil {
		t.Fatalf("Failed to create OpenAI agent: %v", err)
	}

	messages := []Message{
		{
			Role:    "system",
			Content: "You are a helpful assistant. Respond with a short greeting.",
		},
		{
			Role:    "user",
			Content: "Hello!",
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	respChan := make(chan ResponseItem)
	var responses []ResponseItem

	go func() {
		defer close(respChan)
		jsonHandler := func(jsonStr string) {
			var item ResponseItem
			if err := json.Unmarshal([]byte(jsonStr), &item); err != nil {
				t.Errorf("Error unmarshalling response item: %v", err)
				return
			}
			respChan <- item
		}
		if _, err := openaiAgent.SendMessage(ctx, messages, jsonHandler); err != nil {
			t.Errorf("Error sending message: %v", err)
		}
	}()

	for item := range respChan {
		responses = append(responses, item)
	}

	if len(responses) == 0 {
		t.Fatalf("No responses received")
	}

	hasMessage := false
	for _, resp := range responses {
		if resp.Type == "message" && resp.Message != nil {
			hasMessage = true
			break
		}
	}
	if !hasMessage {
		t.Errorf("No message in responses")
	}
}
