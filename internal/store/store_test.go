package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateUser_AssignsUniqueID(t *testing.T) {
	s := newTestStore(t)

	u1, err := s.CreateUser(User{Name: "John Doe", Email: "john@example.com", Company: "Paper Mill Inc.", Country: "USA"})
	require.NoError(t, err)
	require.NotEmpty(t, u1.ID)

	u2, err := s.CreateUser(User{Name: "Jane Roe", Email: "jane@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, u2.ID)
	require.NotEqual(t, u1.ID, u2.ID)

	// Lookup is case-insensitive and returns the stored user unchanged.
	got, err := s.GetUserByEmail("JOHN@Example.COM")
	require.NoError(t, err)
	require.Equal(t, *u1, *got)
}

func TestCreateUser_DuplicateEmailLeavesStoreUnchanged(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateUser(User{Name: "John Doe", Email: "john@example.com"})
	require.NoError(t, err)

	_, err = s.CreateUser(User{Name: "Impostor", Email: "John@Example.com"})
	require.ErrorIs(t, err, ErrDuplicateEmail)

	users, err := s.ListUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "John Doe", users[0].Name)
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUserByEmail("nobody@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestListChatsForUser_SortedNewestFirst(t *testing.T) {
	s := newTestStore(t)

	base := time.Now()
	// Inserted out of order on purpose.
	for _, offset := range []time.Duration{-2 * time.Hour, 0, -1 * time.Hour} {
		_, err := s.UpsertChat(Chat{
			Title:     "chat",
			UserID:    "user-1",
			CreatedAt: base.Add(offset),
		})
		require.NoError(t, err)
	}
	_, err := s.UpsertChat(Chat{Title: "other", UserID: "user-2", CreatedAt: base})
	require.NoError(t, err)

	chats, err := s.ListChatsForUser("user-1")
	require.NoError(t, err)
	require.Len(t, chats, 3)
	for i := 1; i < len(chats); i++ {
		require.False(t, chats[i].CreatedAt.After(chats[i-1].CreatedAt),
			"chats must be ordered by created_at descending")
	}
}

func TestUpsertChat_VersionConflict(t *testing.T) {
	s := newTestStore(t)

	chat, err := s.UpsertChat(Chat{Title: "New Conversation", UserID: "user-1", CreatedAt: time.Now()})
	require.NoError(t, err)
	require.Equal(t, int64(1), chat.Version)

	// A writer holding a stale copy must not clobber the stored one.
	stale := *chat
	stale.Version = 0
	_, err = s.UpsertChat(stale)
	require.ErrorIs(t, err, ErrVersionConflict)

	fresh := *chat
	fresh.Title = "Dryer Fabric Inquiry"
	updated, err := s.UpsertChat(fresh)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated.Version)
	require.Equal(t, "Dryer Fabric Inquiry", updated.Title)
}

func TestAppendMessage(t *testing.T) {
	s := newTestStore(t)

	chat, err := s.UpsertChat(Chat{Title: "New Conversation", UserID: "user-1", CreatedAt: time.Now()})
	require.NoError(t, err)

	got, err := s.AppendMessage(chat.ID, Message{Role: RoleUser, Text: "hello"})
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	require.NotEmpty(t, got.Messages[0].ID)
	require.False(t, got.Messages[0].Timestamp.IsZero())
	require.Equal(t, chat.Version+1, got.Version)

	got, err = s.AppendMessage(chat.ID, Message{Role: RoleModel, Text: "hi", Citations: []Citation{{URI: "https://pmccentre.com", Title: "PMC"}}})
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	require.Equal(t, RoleUser, got.Messages[0].Role)
	require.Equal(t, RoleModel, got.Messages[1].Role)

	_, err = s.AppendMessage("missing-chat", Message{Role: RoleUser, Text: "hello"})
	require.ErrorIs(t, err, ErrChatNotFound)
}

func TestAppendMessage_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	require.NoError(t, err)

	chat, err := s.UpsertChat(Chat{Title: "New Conversation", UserID: "user-1", CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = s.AppendMessage(chat.ID, Message{Role: RoleUser, Text: "hello"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := New(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetChat(chat.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	require.Equal(t, "hello", got.Messages[0].Text)
}

func TestSessionPointerLifecycle(t *testing.T) {
	s := newTestStore(t)

	email, err := s.LastSession()
	require.NoError(t, err)
	require.Empty(t, email)

	require.NoError(t, s.SetLastSession("john@example.com"))
	email, err = s.LastSession()
	require.NoError(t, err)
	require.Equal(t, "john@example.com", email)

	require.NoError(t, s.ClearLastSession())
	email, err = s.LastSession()
	require.NoError(t, err)
	require.Empty(t, email)
}
