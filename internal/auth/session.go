package auth

import (
	"fmt"
	"strings"

	"pmccentre.com/pmc-assistant/internal/store"
)

// Fixed identity for the bootstrapped administrator account.
const (
	adminID      = "admin-user"
	adminName    = "PMC Admin"
	adminCompany = "PMC CENTRE"
	adminCountry = "Global"
)

// Session is an explicit handle for an authenticated user. There is no
// package-level current user; callers thread the session through each call.
type Session struct {
	User    store.User
	IsAdmin bool
}

type Service struct {
	store      *store.Store
	adminEmail string
}

func NewService(st *store.Store, adminEmail string) *Service {
	return &Service{store: st, adminEmail: adminEmail}
}

// Bootstrap creates the administrator account if it is absent. Idempotent;
// safe to run on every process start.
func (s *Service) Bootstrap() error {
	_, err := s.store.GetUserByEmail(s.adminEmail)
	if err == nil {
		return nil
	}
	if err != store.ErrUserNotFound {
		return fmt.Errorf("failed to check for admin account: %w", err)
	}

	_, err = s.store.CreateUser(store.User{
		ID:      adminID,
		Name:    adminName,
		Email:   s.adminEmail,
		Company: adminCompany,
		Country: adminCountry,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}
	return nil
}

// Login looks up the user by case-insensitive email. On a miss the caller
// stays anonymous and gets store.ErrUserNotFound.
func (s *Service) Login(email string) (*Session, error) {
	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetLastSession(user.Email); err != nil {
		return nil, err
	}
	return s.sessionFor(*user), nil
}

// Register creates the user and transitions directly to an authenticated
// session. Fails with store.ErrDuplicateEmail if the email is taken.
func (s *Service) Register(u store.User) (*Session, error) {
	u.ID = "" // assigned by the store
	user, err := s.store.CreateUser(u)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetLastSession(user.Email); err != nil {
		return nil, err
	}
	return s.sessionFor(*user), nil
}

func (s *Service) Logout(sess *Session) error {
	return s.store.ClearLastSession()
}

// Resolve rebuilds a session from a verified identity (the JWT subject).
func (s *Service) Resolve(email string) (*Session, error) {
	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	return s.sessionFor(*user), nil
}

// AdminEmail returns the reserved administrator address.
func (s *Service) AdminEmail() string {
	return s.adminEmail
}

func (s *Service) sessionFor(u store.User) *Session {
	// The admin flag is derived, never stored.
	return &Session{User: u, IsAdmin: strings.EqualFold(u.Email, s.adminEmail)}
}
