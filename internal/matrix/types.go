package matrix

import (
	"errors"
	"fmt"
)

// Session is the result of a successful login.
type Session struct {
	UserID      string `json:"user_id"`
	DeviceID    string `json:"device_id"`
	AccessToken string `json:"access_token"`
}

// Error is a non-success response from the homeserver.
type Error struct {
	StatusCode int    `json:"-"`
	ErrCode    string `json:"errcode"`
	Message    string `json:"error"`
}

func (e *Error) Error() string {
	switch {
	case e.ErrCode != "" && e.Message != "":
		return fmt.Sprintf("matrix: %s: %s (status %d)", e.ErrCode, e.Message, e.StatusCode)
	case e.ErrCode != "":
		return fmt.Sprintf("matrix: %s (status %d)", e.ErrCode, e.StatusCode)
	default:
		return fmt.Sprintf("matrix: unexpected status %d", e.StatusCode)
	}
}

// Well-known error codes returned by the calls this package makes.
const (
	ErrCodeForbidden    = "M_FORBIDDEN"
	ErrCodeUnknownToken = "M_UNKNOWN_TOKEN"
	ErrCodeMissingToken = "M_MISSING_TOKEN"
)

// IsTokenRejected reports whether err is the homeserver refusing the access
// token, which means the session must be created again.
func IsTokenRejected(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrCode == ErrCodeUnknownToken || apiErr.ErrCode == ErrCodeMissingToken
}

type loginIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type loginRequest struct {
	Type                     string          `json:"type"`
	Identifier               loginIdentifier `json:"identifier"`
	Password                 string          `json:"password"`
	InitialDeviceDisplayName string          `json:"initial_device_display_name,omitempty"`
}

type textMessage struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

type sendResponse struct {
	EventID string `json:"event_id"`
}
