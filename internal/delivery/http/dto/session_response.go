package dto

import "time"

type CreateSessionRequest struct {
	UserID    string `json:"user_id"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

type SessionResponse struct {
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
