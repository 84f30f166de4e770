package wire

import "fmt"

// APIError is the payload of an "error" frame: the venue rejected a specific
// request. MsgType names the request type it answers, when the venue says so.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	MsgType string `json:"-"`
}

func (e *APIError) Error() string {
	if e.MsgType != "" {
		return fmt.Sprintf("venue error %s (%s): %s", e.Code, e.MsgType, e.Message)
	}
	return fmt.Sprintf("venue error %s: %s", e.Code, e.Message)
}
