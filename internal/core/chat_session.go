package core

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"pmccentre.com/pmc-assistant/internal/config"
	"pmccentre.com/pmc-assistant/internal/store"
)

// DefaultTitle is the placeholder title a chat carries until its first
// exchange is answered.
const DefaultTitle = "New Conversation"

var (
	ErrEmptyMessage = errors.New("message text is empty")
	ErrSendInFlight = errors.New("another send is already in flight")
)

// SessionManager hands out one ChatSession per user. The session is the
// serialization point for that user's sends.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*ChatSession

	store       *store.Store
	completer   Completer
	titleMaxLen int
	timeout     time.Duration
}

func NewSessionManager(st *store.Store, completer Completer) *SessionManager {
	titleMaxLen := config.AppConfig.TitleMaxLen
	if titleMaxLen <= 0 {
		titleMaxLen = 40
	}
	timeout := time.Duration(config.AppConfig.CompletionTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SessionManager{
		sessions:    make(map[string]*ChatSession),
		store:       st,
		completer:   completer,
		titleMaxLen: titleMaxLen,
		timeout:     timeout,
	}
}

func (m *SessionManager) Session(userID string) *ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := &ChatSession{
		userID:      userID,
		store:       m.store,
		completer:   m.completer,
		titleMaxLen: m.titleMaxLen,
		timeout:     m.timeout,
	}
	m.sessions[userID] = s
	return s
}

// ChatSession owns one user's chat set and active-chat selection. A newly
// started chat stays pending (in memory only) until its first message, so
// abandoned empty chats never reach the store.
type ChatSession struct {
	mu       sync.Mutex
	userID   string
	pending  *store.Chat
	activeID string
	inFlight bool

	store       *store.Store
	completer   Completer
	titleMaxLen int
	timeout     time.Duration
}

// Chats returns the user's chats newest first, with a pending chat (if any)
// at the head.
func (s *ChatSession) Chats() ([]store.Chat, error) {
	chats, err := s.store.ListChatsForUser(s.userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		chats = append([]store.Chat{*s.pending}, chats...)
	}
	return chats, nil
}

// SelectChat makes an existing chat the active one. An unknown ID leaves the
// selection unchanged and reports store.ErrChatNotFound.
func (s *ChatSession) SelectChat(chatID string) error {
	s.mu.Lock()
	if s.pending != nil && s.pending.ID == chatID {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	chat, err := s.store.GetChat(chatID)
	if err != nil {
		return err
	}
	if chat.UserID != s.userID {
		return store.ErrChatNotFound
	}

	s.mu.Lock()
	s.activeID = chatID
	s.pending = nil // an untouched new chat is abandoned, never persisted
	s.mu.Unlock()
	return nil
}

// NewChat starts a fresh chat and makes it active. It is not persisted until
// the first message is sent.
func (s *ChatSession) NewChat() *store.Chat {
	chat := &store.Chat{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		UserID:    s.userID,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.pending = chat
	s.activeID = ""
	s.mu.Unlock()

	c := *chat
	return &c
}

// SendMessage appends the user message to the active chat (starting one if
// none is active), asks the completer for a response, and appends the model
// message. A completion failure becomes the apology message; the send still
// succeeds. The bool reports whether the API credential was flagged invalid.
func (s *ChatSession) SendMessage(ctx context.Context, text string) (*store.Chat, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, false, ErrSendInFlight
	}
	s.inFlight = true
	pending := s.pending
	activeID := s.activeID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	if pending == nil && activeID == "" {
		pending = &store.Chat{
			ID:        uuid.NewString(),
			Title:     DefaultTitle,
			UserID:    s.userID,
			CreatedAt: time.Now(),
		}
	}

	var chat *store.Chat
	var err error
	if pending != nil {
		chat, err = s.store.UpsertChat(*pending)
		if err != nil {
			return nil, false, err
		}
		s.mu.Lock()
		s.pending = nil
		s.activeID = chat.ID
		s.mu.Unlock()
	} else {
		chat, err = s.store.GetChat(activeID)
		if err != nil {
			return nil, false, err
		}
	}

	firstExchange := len(chat.Messages) == 0

	chat, err = s.store.AppendMessage(chat.ID, store.Message{Role: store.RoleUser, Text: text})
	if err != nil {
		return nil, false, err
	}

	// Prior history only; the prompt itself is passed separately.
	history := make([]Turn, 0, len(chat.Messages)-1)
	for _, m := range chat.Messages[:len(chat.Messages)-1] {
		history = append(history, Turn{Role: m.Role, Text: m.Text})
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, cerr := s.completer.Complete(cctx, text, history)
	credentialInvalid := false
	if cerr != nil {
		log.Printf("Completion failed for chat %s: %v", chat.ID, cerr)
		if errors.Is(cerr, ErrInvalidCredential) {
			credentialInvalid = true
		}
	}
	if completion == nil {
		completion = apology()
	}

	chat, err = s.store.AppendMessage(chat.ID, store.Message{
		Role:      store.RoleModel,
		Text:      completion.Text,
		Citations: completion.Citations,
	})
	if err != nil {
		return nil, false, err
	}

	if firstExchange {
		updated := *chat
		updated.Title = deriveTitle(text, s.titleMaxLen)
		chat, err = s.store.UpsertChat(updated)
		if err != nil {
			return nil, false, err
		}
	}

	s.mu.Lock()
	s.activeID = chat.ID
	s.mu.Unlock()

	return chat, credentialInvalid, nil
}

// deriveTitle truncates the first user message to at most max runes,
// appending an ellipsis only when something was cut.
func deriveTitle(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
