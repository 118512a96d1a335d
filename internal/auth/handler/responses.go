package handler

import "workguard/internal/auth/models"

type LoginResponse struct {
	Success     bool               `json:"success"`
	Token       string             `json:"token"`
	SessionID   string             `json:"sessionId"`
	User        models.UserSummary `json:"user"`
	SessionInfo models.SessionInfo `json:"sessionInfo"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type SessionsResponse struct {
	Success  bool                    `json:"success"`
	Sessions []models.SessionSummary `json:"sessions"`
}

type AttemptsResponse struct {
	Success  bool                  `json:"success"`
	Attempts []models.LoginAttempt `json:"attempts"`
}

type PresenceResponse struct {
	Success  bool                `json:"success"`
	Presence models.UserPresence `json:"presence"`
}
