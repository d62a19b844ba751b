package core

import (
	"strings"

	"pmccentre.com/pmc-assistant/internal/store"
)

// AdminService is a read-only projection over the store for the
// administrator's dashboard. It never writes.
type AdminService struct {
	store      *store.Store
	adminEmail string
}

func NewAdminService(st *store.Store, adminEmail string) *AdminService {
	return &AdminService{store: st, adminEmail: adminEmail}
}

// ListNonAdminUsers returns every user except the reserved administrator.
func (s *AdminService) ListNonAdminUsers() ([]store.User, error) {
	users, err := s.store.ListUsers()
	if err != nil {
		return nil, err
	}
	filtered := make([]store.User, 0, len(users))
	for _, u := range users {
		if strings.EqualFold(u.Email, s.adminEmail) {
			continue
		}
		filtered = append(filtered, u)
	}
	return filtered, nil
}

// ChatsForUser returns the user's chats, newest first.
func (s *AdminService) ChatsForUser(userID string) ([]store.Chat, error) {
	return s.store.ListChatsForUser(userID)
}
