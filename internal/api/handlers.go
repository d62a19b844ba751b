package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"pmccentre.com/pmc-assistant/internal/auth"
	"pmccentre.com/pmc-assistant/internal/core"
	"pmccentre.com/pmc-assistant/internal/store"
)

type APIHandler struct {
	authService  *auth.Service
	sessions     *core.SessionManager
	adminService *core.AdminService
}

func NewAPIHandler(as *auth.Service, sm *core.SessionManager, adm *core.AdminService) *APIHandler {
	return &APIHandler{authService: as, sessions: sm, adminService: adm}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		email, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		session, err := h.authService.Resolve(email)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				http.Error(w, "User not found", http.StatusUnauthorized)
				return
			}
			log.Printf("Error resolving session for %s: %v", email, err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), "session", session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *APIHandler) AdminOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := r.Context().Value("session").(*auth.Session)
		if !session.IsAdmin {
			http.Error(w, "Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type LoginRequest struct {
	Email string `json:"email"`
}

type AuthResponse struct {
	Token   string     `json:"token"`
	User    store.User `json:"user"`
	IsAdmin bool       `json:"is_admin"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		http.Error(w, "Email is required", http.StatusBadRequest)
		return
	}

	session, err := h.authService.Login(req.Email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Printf("Error logging in %s: %v", req.Email, err)
		http.Error(w, "Failed to log in", http.StatusInternalServerError)
		return
	}

	h.writeAuthResponse(w, session, http.StatusOK)
}

type RegisterRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Country string `json:"country"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Email == "" {
		http.Error(w, "Name and email are required", http.StatusBadRequest)
		return
	}

	session, err := h.authService.Register(store.User{
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
		Country: req.Country,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			http.Error(w, "Email already registered", http.StatusConflict)
			return
		}
		log.Printf("Error registering %s: %v", req.Email, err)
		http.Error(w, "Failed to register", http.StatusInternalServerError)
		return
	}

	h.writeAuthResponse(w, session, http.StatusCreated)
}

func (h *APIHandler) writeAuthResponse(w http.ResponseWriter, session *auth.Session, status int) {
	token, err := auth.GenerateJWT(session.User.Email)
	if err != nil {
		log.Printf("Error generating JWT for %s: %v", session.User.Email, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(AuthResponse{
		Token:   token,
		User:    session.User,
		IsAdmin: session.IsAdmin,
	})
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value("session").(*auth.Session)
	if err := h.authService.Logout(session); err != nil {
		log.Printf("Error logging out %s: %v", session.User.Email, err)
		http.Error(w, "Failed to log out", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value("session").(*auth.Session)

	chats, err := h.sessions.Session(session.User.ID).Chats()
	if err != nil {
		log.Printf("Error listing chats for user %s: %v", session.User.ID, err)
		http.Error(w, "Failed to list chats", http.StatusInternalServerError)
		return
	}
	if chats == nil {
		chats = []store.Chat{}
	}
	json.NewEncoder(w).Encode(chats)
}

func (h *APIHandler) NewChatHandler(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value("session").(*auth.Session)

	chat := h.sessions.Session(session.User.ID).NewChat()
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(chat)
}

func (h *APIHandler) SelectChatHandler(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value("session").(*auth.Session)
	chatID := chi.URLParam(r, "chatID")

	if err := h.sessions.Session(session.User.ID).SelectChat(chatID); err != nil {
		if errors.Is(err, store.ErrChatNotFound) {
			http.Error(w, "Chat not found", http.StatusNotFound)
			return
		}
		log.Printf("Error selecting chat %s for user %s: %v", chatID, session.User.ID, err)
		http.Error(w, "Failed to select chat", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

type SendMessageResponse struct {
	Chat              *store.Chat `json:"chat"`
	CredentialInvalid bool        `json:"credential_invalid"`
}

func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	session := r.Context().Value("session").(*auth.Session)

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	chat, credentialInvalid, err := h.sessions.Session(session.User.ID).SendMessage(r.Context(), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyMessage):
			http.Error(w, "Message text cannot be empty", http.StatusBadRequest)
		case errors.Is(err, core.ErrSendInFlight):
			http.Error(w, "A message is already being processed", http.StatusTooManyRequests)
		case errors.Is(err, store.ErrChatNotFound):
			http.Error(w, "Chat not found", http.StatusNotFound)
		default:
			log.Printf("Error sending message for user %s: %v", session.User.ID, err)
			http.Error(w, "Failed to send message", http.StatusInternalServerError)
		}
		return
	}

	json.NewEncoder(w).Encode(SendMessageResponse{
		Chat:              chat,
		CredentialInvalid: credentialInvalid,
	})
}

func (h *APIHandler) AdminListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.ListNonAdminUsers()
	if err != nil {
		log.Printf("Error listing users: %v", err)
		http.Error(w, "Failed to list users", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(users)
}

func (h *APIHandler) AdminUserChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	chats, err := h.adminService.ChatsForUser(userID)
	if err != nil {
		log.Printf("Error listing chats for user %s: %v", userID, err)
		http.Error(w, "Failed to list chats", http.StatusInternalServerError)
		return
	}
	if chats == nil {
		chats = []store.Chat{}
	}
	json.NewEncoder(w).Encode(chats)
}
