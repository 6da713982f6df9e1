package api

import (
	"encoding/json"
	"strings"
)

// User is the profile the backend returns for an authenticated account.
type User struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email"`
	FullName  string `json:"full_name,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	IsActive  bool   `json:"is_active,omitempty"`
}

// DisplayName prefers first/last name, then full name, then the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return u.Email
}

type SessionResponse struct {
	SessionID string `json:"sessionId"`
}

// UnmarshalJSON accepts both `sessionId` and the `session_id` spelling used by
// the python backend.
func (r *SessionResponse) UnmarshalJSON(b []byte) error {
	var raw struct {
		SessionID      string `json:"sessionId"`
		SessionIDSnake string `json:"session_id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.SessionID = raw.SessionID
	if r.SessionID == "" {
		r.SessionID = raw.SessionIDSnake
	}
	return nil
}

type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

type LanguagesResponse struct {
	Languages map[string]string `json:"languages"`
}

type ChatRequest struct {
	Query     string `json:"query"`
	Category  string `json:"category"`
	Language  string `json:"language"`
	SessionID string `json:"session_id"`
}

type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the profile submitted when creating an account.
type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FullName  string `json:"full_name,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// UnmarshalJSON also accepts an `access_token` field in place of `token`.
func (r *AuthResponse) UnmarshalJSON(b []byte) error {
	var raw struct {
		User        *User  `json:"user"`
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.User = raw.User
	r.Token = raw.Token
	if r.Token == "" {
		r.Token = raw.AccessToken
	}
	return nil
}

type ValidateResponse struct {
	User *User `json:"user"`
}

// UnmarshalJSON accepts either `{"user": {...}}` or a bare user object.
func (r *ValidateResponse) UnmarshalJSON(b []byte) error {
	var wrapped struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	if wrapped.User != nil {
		r.User = wrapped.User
		return nil
	}
	var bare User
	if err := json.Unmarshal(b, &bare); err != nil {
		return err
	}
	if bare.Email != "" || bare.ID != "" {
		r.User = &bare
	}
	return nil
}

type resetPasswordRequest struct {
	Email string `json:"email"`
}

type updatePasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
