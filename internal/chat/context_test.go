package chat

import (
	"context"
	"strings"
	"testing"

	"parley/internal/domain"
	"parley/internal/storage"
)

func TestHistoryContext_PrependsSystemAndFiltersNoise(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	conv := domain.Conversation{ID: "c1", OwnerID: "alice"}
	if err := st.CreateConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}

	st.AppendMessage(ctx, "c1", domain.RoleSystem, "internal note")
	st.AppendMessage(ctx, "c1", domain.RoleUser, "question")
	st.AppendMessage(ctx, "c1", domain.RoleAssistant, fallbackReplyText)
	st.AppendMessage(ctx, "c1", domain.RoleUser, "still there?")
	st.AppendMessage(ctx, "c1", domain.RoleAssistant, "yes")

	msgs, err := historyContext(st, "c1", "be brief")(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if msgs[0].Role != domain.RoleSystem || msgs[0].Content != "be brief" {
		t.Fatalf("missing system preamble: %+v", msgs[0])
	}
	// The stored system message and the fallback reply are dropped, and the
	// two now-adjacent user messages collapse into one.
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[1].Role != domain.RoleUser || !strings.Contains(msgs[1].Content, "question") || !strings.Contains(msgs[1].Content, "still there?") {
		t.Errorf("user messages not collapsed: %+v", msgs[1])
	}
	if msgs[2].Role != domain.RoleAssistant || msgs[2].Content != "yes" {
		t.Errorf("unexpected tail: %+v", msgs[2])
	}
}

func TestHistoryContext_LimitsReplay(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	st.CreateConversation(ctx, domain.Conversation{ID: "c1", OwnerID: "alice"})

	for i := 0; i < historyLimit+10; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		st.AppendMessage(ctx, "c1", role, "m")
	}

	msgs, err := historyContext(st, "c1", "sys")(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// System preamble plus at most historyLimit replayed messages.
	if len(msgs) > historyLimit+1 {
		t.Errorf("replayed %d messages, want at most %d", len(msgs)-1, historyLimit)
	}
}

func TestTitleFromContent(t *testing.T) {
	if got := titleFromContent("  hello   world  "); got != "hello world" {
		t.Errorf("got %q", got)
	}

	long := strings.Repeat("word ", 30)
	got := titleFromContent(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long title not truncated: %q", got)
	}
	if len([]rune(got)) > 51 {
		t.Errorf("title too long: %d runes", len([]rune(got)))
	}

	// Multi-byte runes are never split.
	unicodeTitle := titleFromContent(strings.Repeat("日本語テキスト", 20))
	if !strings.HasSuffix(unicodeTitle, "...") {
		t.Errorf("unicode title not truncated: %q", unicodeTitle)
	}
}
