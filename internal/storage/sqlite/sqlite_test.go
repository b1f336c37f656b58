//go:build sqlite

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"parley/internal/domain"
	"parley/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_fk=1"
	st, err := New(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func mkConv(t *testing.T, st *Store, owner string) domain.Conversation {
	t.Helper()
	now := time.Now().UTC()
	conv := domain.Conversation{
		ID:        uuid.New().String(),
		OwnerID:   owner,
		Title:     domain.DefaultConversationTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	return conv
}

func TestMigrationsApplyOnOpen(t *testing.T) {
	st := newTestStore(t)

	var n int
	if err := st.DB().QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("schema_migrations missing: %v", err)
	}
	if n == 0 {
		t.Error("no migrations recorded")
	}
	if err := st.Ping(context.Background()); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	conv := mkConv(t, st, "alice")

	got, err := st.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.OwnerID != "alice" {
		t.Errorf("owner lost: %+v", got)
	}
	// Timestamps survive the TEXT round trip.
	if got.CreatedAt.Unix() != conv.CreatedAt.Unix() {
		t.Errorf("created_at drifted: %v vs %v", got.CreatedAt, conv.CreatedAt)
	}

	if err := st.CreateConversation(ctx, conv); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict on duplicate, got %v", err)
	}
}

func TestMessageOrderAndRangeDelete(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	conv := mkConv(t, st, "alice")

	u1, err := st.AppendMessage(ctx, conv.ID, domain.RoleUser, "u1")
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	a1, _ := st.AppendMessage(ctx, conv.ID, domain.RoleAssistant, "a1")
	st.AppendMessage(ctx, conv.ID, domain.RoleUser, "u2")
	st.AppendMessage(ctx, conv.ID, domain.RoleAssistant, "a2")

	msgs, err := st.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Seq <= msgs[i-1].Seq {
			t.Fatal("messages not ordered by seq")
		}
	}

	recent, _ := st.ListMessages(ctx, conv.ID, 2)
	if len(recent) != 2 || recent[0].Content != "u2" || recent[1].Content != "a2" {
		t.Errorf("limit window wrong: %+v", recent)
	}

	n, err := st.DeleteMessagesFrom(ctx, conv.ID, a1.Seq)
	if err != nil {
		t.Fatalf("DeleteMessagesFrom failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 deleted, got %d", n)
	}
	left, _ := st.ListMessages(ctx, conv.ID, 0)
	if len(left) != 1 || left[0].ID != u1.ID {
		t.Errorf("wrong survivors: %+v", left)
	}
}

func TestLatestAndEdit(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	conv := mkConv(t, st, "alice")

	st.AppendMessage(ctx, conv.ID, domain.RoleUser, "first")
	last, _ := st.AppendMessage(ctx, conv.ID, domain.RoleUser, "second")

	latest, err := st.LatestMessage(ctx, conv.ID)
	if err != nil {
		t.Fatalf("LatestMessage failed: %v", err)
	}
	if latest.ID != last.ID {
		t.Errorf("expected %s, got %s", last.ID, latest.ID)
	}

	updated, err := st.UpdateMessageContent(ctx, last.ID, "edited")
	if err != nil {
		t.Fatalf("UpdateMessageContent failed: %v", err)
	}
	if updated.Content != "edited" || updated.Seq != last.Seq {
		t.Errorf("edit changed position: %+v", updated)
	}

	if _, err := st.UpdateMessageContent(ctx, uuid.New().String(), "x"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCascadeDelete(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	conv := mkConv(t, st, "alice")
	m, _ := st.AppendMessage(ctx, conv.ID, domain.RoleUser, "hello")

	if err := st.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	if _, err := st.GetMessage(ctx, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Error("messages survived conversation delete")
	}
}

func TestDeleteConversationsByOwner(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	mkConv(t, st, "alice")
	mkConv(t, st, "alice")
	keep := mkConv(t, st, "bob")

	n, err := st.DeleteConversationsByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("DeleteConversationsByOwner failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	if _, err := st.GetConversation(ctx, keep.ID); err != nil {
		t.Error("foreign conversation deleted")
	}
}
