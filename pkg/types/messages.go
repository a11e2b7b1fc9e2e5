package types

import "github.com/DoyleJ11/raffle-backend/internal/engine"

// Client -> Server (websocket)
// StartDraw:   count: number
// NewDraw:     {}
// Reset:       keep_roster: boolean
// SetBranding: title, description: string, logos: data URL[]
//
// Server -> Client
// StateSnapshot: SessionView
// Display:       version: number, display: string (reveal flicker frame;
//                the rest of the last snapshot still holds)
// Error:         error: string, message: string

type CreateSessionResponse struct {
	Code string `json:"code"`
}

type DrawRequest struct {
	Count int `json:"count"`
}

type ResetRequest struct {
	KeepRoster bool `json:"keep_roster"`
}

type BrandingRequest = engine.Branding

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
