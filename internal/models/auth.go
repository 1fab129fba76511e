// internal/models/auth.go
package models

import "time"

type Token struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type AuthTokens struct {
	Access  Token `json:"access"`
	Refresh Token `json:"refresh"`
}

type AuthResponse struct {
	User   User       `json:"user"`
	Tokens AuthTokens `json:"tokens"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
