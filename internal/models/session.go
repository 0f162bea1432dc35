package models

import "time"

// Tokens: пара токенов сессии.
type Tokens struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Credentials: логин в торговый API.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult содержит ответ на вход, токены и тайминги переподключения от сервера.
type AuthResult struct {
	Tokens
	ReconnectTimeout  time.Duration
	ConnectionTimeout time.Duration
}
