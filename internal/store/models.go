package store

import "time"

const (
	RoleUser  = "user"
	RoleModel = "model"
)

type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Country string `json:"country"`
}

// Citation is a grounding reference attached to a model message.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type Message struct {
	ID        string     `json:"id"`   // UUID
	Role      string     `json:"role"` // "user" or "model"
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

type Chat struct {
	ID        string    `json:"id"` // UUID
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Version   int64     `json:"version"` // optimistic concurrency token, bumped by the store on every write
}
