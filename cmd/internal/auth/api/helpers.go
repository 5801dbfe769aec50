package api

import (
	"github.com/finovotech001-eng/zuperior-api/cmd/identity"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/session"
)

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:            u.ID,
		ClientID:      u.ClientID,
		Email:         u.Email,
		Name:          u.Name,
		Phone:         u.Phone,
		Country:       u.Country,
		CreatedAt:     u.CreatedAt,
		EmailVerified: u.EmailVerified,
		LastLoginAt:   u.LastLoginAt,
		Role:          u.Role,
		Status:        u.Status,
	}
}

func toTokenResponse(issued session.Issued) tokenResponse {
	return tokenResponse{
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
		TokenType:    "bearer",
	}
}

// toSessionResponse prefers the stored device name and fills the rest from the user agent.
func toSessionResponse(s session.Session) sessionResponse {
	info := session.InferDevice(s.UserAgent)
	device := s.DeviceName
	if device == "" {
		device = info.DeviceName
	}
	return sessionResponse{
		ID:           s.ID,
		Device:       device,
		Browser:      info.Browser,
		OS:           info.OS,
		IPAddress:    s.IPAddress,
		UserAgent:    s.UserAgent,
		IssuedAt:     s.IssuedAt,
		LastActivity: s.LastActivity,
		ExpiresAt:    s.ExpiresAt,
	}
}
