package chat

import (
	"context"
	"fmt"
	"strings"

	"parley/internal/domain"
	"parley/internal/llm"
	"parley/internal/storage"
)

// historyLimit bounds how many recent messages are replayed to the backend.
const historyLimit = 50

// defaultSystemPrompt is the preamble sent ahead of the conversation history.
const defaultSystemPrompt = "You are a helpful assistant. Answer concisely and accurately."

// fallbackReplyText was persisted by older clients in place of a real reply
// when generation failed. It carries no signal, so history replay drops it.
const fallbackReplyText = "Sorry, I was unable to generate a response. Please try again."

// historyContext returns a ContextBuilder that loads the conversation's
// recent history and prepends the system preamble. Consecutive same-role
// messages are collapsed into one, since some backends reject alternating
// violations.
func historyContext(store storage.MessageStore, conversationID, systemPrompt string) ContextBuilder {
	return func(ctx context.Context) ([]llm.Message, error) {
		history, err := store.ListMessages(ctx, conversationID, historyLimit)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}

		messages := []llm.Message{{Role: domain.RoleSystem, Content: systemPrompt}}
		for _, m := range history {
			if m.Role == domain.RoleSystem {
				continue
			}
			if m.Content == fallbackReplyText {
				continue
			}
			if last := len(messages) - 1; messages[last].Role == m.Role {
				messages[last].Content = messages[last].Content + "\n\n" + m.Content
				continue
			}
			messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
		}
		return messages, nil
	}
}

// titleFromContent derives a conversation title from the first user message.
func titleFromContent(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	runes := []rune(title)
	if len(runes) > 48 {
		title = strings.TrimSpace(string(runes[:48])) + "..."
	}
	return title
}
