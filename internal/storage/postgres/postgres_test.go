//go:build postgres

package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"parley/internal/domain"
	"parley/internal/storage"
)

// testDB holds a shared database connection for the suite, initialized once
// via TestMain.
var testDB struct {
	connStr   string
	pool      *pgxpool.Pool
	store     *Store
	container testcontainers.Container
}

// TestMain sets up a PostgreSQL database for tests. With DATABASE_URL set it
// uses that instance; otherwise it starts a disposable container.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("parley_test"),
			tcpostgres.WithUsername("parley"),
			tcpostgres.WithPassword("parley"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}
		testDB.container = container

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
			_ = container.Terminate(ctx)
			os.Exit(1)
		}
	}

	testDB.connStr = connStr

	store, err := New(connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create store: %v\n", err)
		if testDB.container != nil {
			_ = testDB.container.Terminate(ctx)
		}
		os.Exit(1)
	}
	testDB.store = store
	testDB.pool = store.Pool()

	code := m.Run()

	_ = store.Close()
	if testDB.container != nil {
		_ = testDB.container.Terminate(ctx)
	}

	os.Exit(code)
}

// resetDB truncates data tables between tests.
func resetDB(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, table := range []string{"messages", "sessions", "conversations", "users"} {
		if _, err := testDB.pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("failed to reset table %s: %v", table, err)
		}
	}
}

func mkConv(t *testing.T, owner string) domain.Conversation {
	t.Helper()
	now := time.Now().UTC()
	conv := domain.Conversation{
		ID:        uuid.New().String(),
		OwnerID:   owner,
		Title:     domain.DefaultConversationTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := testDB.store.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	return conv
}

func TestConversationCRUD(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	conv := mkConv(t, "alice")

	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.OwnerID != "alice" || got.Title != domain.DefaultConversationTitle {
		t.Errorf("unexpected conversation: %+v", got)
	}

	if _, err := s.GetConversation(ctx, uuid.New().String()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	renamed, err := s.UpdateConversationTitle(ctx, conv.ID, "Weekend plans")
	if err != nil {
		t.Fatalf("UpdateConversationTitle failed: %v", err)
	}
	if renamed.Title != "Weekend plans" {
		t.Errorf("title not updated: %q", renamed.Title)
	}

	if err := s.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	if err := s.DeleteConversation(ctx, conv.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListConversations_OwnerScope(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	mkConv(t, "alice")
	mkConv(t, "alice")
	mkConv(t, "bob")

	convs, err := s.ListConversations(ctx, "alice")
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 2 {
		t.Errorf("expected 2 conversations, got %d", len(convs))
	}
}

func TestAppendAndListMessages(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	conv := mkConv(t, "alice")

	u1, err := s.AppendMessage(ctx, conv.ID, domain.RoleUser, "hello")
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if u1.ID == "" || u1.Seq == 0 {
		t.Errorf("store did not assign identity: %+v", u1)
	}
	a1, _ := s.AppendMessage(ctx, conv.ID, domain.RoleAssistant, "hi")
	if a1.Seq <= u1.Seq {
		t.Errorf("seq not monotonic: %d then %d", u1.Seq, a1.Seq)
	}

	msgs, err := s.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != u1.ID || msgs[1].ID != a1.ID {
		t.Errorf("wrong order: %+v", msgs)
	}

	recent, err := s.ListMessages(ctx, conv.ID, 1)
	if err != nil {
		t.Fatalf("ListMessages with limit failed: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != a1.ID {
		t.Errorf("limit should return the most recent message: %+v", recent)
	}

	if _, err := s.AppendMessage(ctx, uuid.New().String(), domain.RoleUser, "x"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing conversation, got %v", err)
	}

	// Appending bumps the conversation's updated_at.
	got, _ := s.GetConversation(ctx, conv.ID)
	if !got.UpdatedAt.After(conv.UpdatedAt) {
		t.Error("updated_at not bumped by append")
	}
}

func TestLatestAndUpdateMessage(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	conv := mkConv(t, "alice")

	if _, err := s.LatestMessage(ctx, conv.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty conversation, got %v", err)
	}

	s.AppendMessage(ctx, conv.ID, domain.RoleUser, "first")
	last, _ := s.AppendMessage(ctx, conv.ID, domain.RoleUser, "second")

	latest, err := s.LatestMessage(ctx, conv.ID)
	if err != nil {
		t.Fatalf("LatestMessage failed: %v", err)
	}
	if latest.ID != last.ID {
		t.Errorf("expected %s, got %s", last.ID, latest.ID)
	}

	updated, err := s.UpdateMessageContent(ctx, last.ID, "edited")
	if err != nil {
		t.Fatalf("UpdateMessageContent failed: %v", err)
	}
	if updated.Content != "edited" || updated.Seq != last.Seq {
		t.Errorf("edit changed position or missed content: %+v", updated)
	}
}

func TestDeleteMessagesFrom(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	conv := mkConv(t, "alice")
	s.AppendMessage(ctx, conv.ID, domain.RoleUser, "keep")
	cut, _ := s.AppendMessage(ctx, conv.ID, domain.RoleAssistant, "cut")
	s.AppendMessage(ctx, conv.ID, domain.RoleUser, "gone")
	s.AppendMessage(ctx, conv.ID, domain.RoleAssistant, "gone too")

	n, err := s.DeleteMessagesFrom(ctx, conv.ID, cut.Seq)
	if err != nil {
		t.Fatalf("DeleteMessagesFrom failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 deleted, got %d", n)
	}
	left, _ := s.ListMessages(ctx, conv.ID, 0)
	if len(left) != 1 || left[0].Content != "keep" {
		t.Errorf("wrong survivors: %+v", left)
	}
}

func TestDeleteConversation_CascadesMessages(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	conv := mkConv(t, "alice")
	m, _ := s.AppendMessage(ctx, conv.ID, domain.RoleUser, "hello")

	if err := s.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	if _, err := s.GetMessage(ctx, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Error("messages survived conversation delete")
	}
}

func TestDeleteConversationsByOwner(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	mkConv(t, "alice")
	mkConv(t, "alice")
	keep := mkConv(t, "bob")

	n, err := s.DeleteConversationsByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("DeleteConversationsByOwner failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	if _, err := s.GetConversation(ctx, keep.ID); err != nil {
		t.Error("foreign conversation deleted")
	}
}
