package model

// Session is the server-side state bound to one cookie token.
type Session struct {
	UserID int64  `json:"user_id"`
	Flash  string `json:"flash,omitempty"`
}
