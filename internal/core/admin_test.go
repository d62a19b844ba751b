package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"pmccentre.com/pmc-assistant/internal/store"
)

func TestListNonAdminUsers(t *testing.T) {
	st := newTestStore(t)

	_, err := st.CreateUser(store.User{ID: "admin-user", Name: "PMC Admin", Email: "admin@pmccentre.com"})
	require.NoError(t, err)
	john, err := st.CreateUser(store.User{Name: "John Doe", Email: "john@example.com"})
	require.NoError(t, err)

	admin := NewAdminService(st, "admin@pmccentre.com")
	users, err := admin.ListNonAdminUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, john.ID, users[0].ID)
}

func TestAdminChatsForUser_NewestFirst(t *testing.T) {
	st := newTestStore(t)
	completer := &stubCompleter{completion: &Completion{Text: "answer"}}
	session := NewSessionManager(st, completer).Session("user-1")

	first, _, err := session.SendMessage(context.Background(), "older chat")
	require.NoError(t, err)
	session.NewChat()
	second, _, err := session.SendMessage(context.Background(), "newer chat")
	require.NoError(t, err)

	admin := NewAdminService(st, "admin@pmccentre.com")
	chats, err := admin.ChatsForUser("user-1")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	require.Equal(t, second.ID, chats[0].ID)
	require.Equal(t, first.ID, chats[1].ID)
}
