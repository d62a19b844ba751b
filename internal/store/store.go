package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	usersKey   = "users"
	chatsKey   = "chats"
	sessionKey = "session"
)

// Store persists users and chats as whole JSON collections in the KV layer.
// Every mutation is a read-modify-write of the entire affected collection,
// serialized by the mutex. Mutations return explicit errors; a failed write
// is never silently dropped.
type Store struct {
	mu sync.Mutex
	kv *KV
}

func New(dataSourceName string) (*Store, error) {
	kv, err := OpenKV(dataSourceName)
	if err != nil {
		return nil, err
	}
	return &Store{kv: kv}, nil
}

func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) loadUsers() ([]User, error) {
	raw, err := s.kv.Get(usersKey)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var users []User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users collection: %w", err)
	}
	return users, nil
}

func (s *Store) saveUsers(users []User) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("failed to encode users collection: %w", err)
	}
	return s.kv.Put(usersKey, raw)
}

func (s *Store) loadChats() ([]Chat, error) {
	raw, err := s.kv.Get(chatsKey)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var chats []Chat
	if err := json.Unmarshal(raw, &chats); err != nil {
		return nil, fmt.Errorf("failed to decode chats collection: %w", err)
	}
	return chats, nil
}

func (s *Store) saveChats(chats []Chat) error {
	raw, err := json.Marshal(chats)
	if err != nil {
		return fmt.Errorf("failed to encode chats collection: %w", err)
	}
	return s.kv.Put(chatsKey, raw)
}

// User methods

func (s *Store) GetUserByEmail(email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			u := users[i]
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *Store) GetUserByID(id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			u := users[i]
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

// CreateUser inserts a new user. The ID is assigned here unless the caller
// supplied one (the admin bootstrap uses a fixed ID).
func (s *Store) CreateUser(u User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, u.Email) {
			return nil, ErrDuplicateEmail
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	users = append(users, u)
	if err := s.saveUsers(users); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers() ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadUsers()
}

// Chat methods

func (s *Store) ListChatsForUser(userID string) ([]Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats, err := s.loadChats()
	if err != nil {
		return nil, err
	}
	var owned []Chat
	for i := range chats {
		if chats[i].UserID == userID {
			owned = append(owned, chats[i])
		}
	}
	sort.SliceStable(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	return owned, nil
}

func (s *Store) GetChat(chatID string) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats, err := s.loadChats()
	if err != nil {
		return nil, err
	}
	for i := range chats {
		if chats[i].ID == chatID {
			c := chats[i]
			return &c, nil
		}
	}
	return nil, ErrChatNotFound
}

// UpsertChat inserts the chat if its ID is unseen, otherwise replaces the
// stored copy wholesale. The chat's Version must match the stored one (0 for
// an insert); a stale token fails with ErrVersionConflict so concurrent
// sessions on the same account cannot silently drop each other's writes.
func (s *Store) UpsertChat(c Chat) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats, err := s.loadChats()
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range chats {
		if chats[i].ID == c.ID {
			idx = i
			break
		}
	}

	if idx == -1 {
		if c.Version != 0 {
			return nil, ErrVersionConflict
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.Version = 1
		chats = append(chats, c)
	} else {
		if c.Version != chats[idx].Version {
			return nil, ErrVersionConflict
		}
		c.Version++
		chats[idx] = c
	}

	if err := s.saveChats(chats); err != nil {
		return nil, err
	}
	return &c, nil
}

// AppendMessage appends to an existing chat, assigning the message ID and
// timestamp. Messages are immutable once appended; there is no edit or
// delete.
func (s *Store) AppendMessage(chatID string, m Message) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats, err := s.loadChats()
	if err != nil {
		return nil, err
	}

	for i := range chats {
		if chats[i].ID == chatID {
			m.ID = uuid.NewString()
			m.Timestamp = time.Now()
			chats[i].Messages = append(chats[i].Messages, m)
			chats[i].Version++
			if err := s.saveChats(chats); err != nil {
				return nil, err
			}
			c := chats[i]
			return &c, nil
		}
	}
	return nil, ErrChatNotFound
}

// Session pointer

// LastSession returns the persisted session pointer, "" if none.
func (s *Store) LastSession() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(sessionKey)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *Store) SetLastSession(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Put(sessionKey, []byte(email))
}

func (s *Store) ClearLastSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(sessionKey)
}
