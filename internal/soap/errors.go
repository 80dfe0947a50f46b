package soap

import (
	"errors"
	"fmt"
)

// ErrUnexpectedResponse is returned when the body holds neither the
// expected response element nor a fault.
var ErrUnexpectedResponse = errors.New("unexpected SOAP response")

// Fault codes the client reacts to.
const (
	CodeAuthExpired  = "service.AUTH_EXPIRED"
	CodeAuthRequired = "service.AUTH_REQUIRED"
	CodeAuthFailed   = "account.AUTH_FAILED"
	CodeNoSuchFolder = "mail.NO_SUCH_FOLDER"
	CodeNoSuchItem   = "mail.NO_SUCH_ITEM"
)

// FaultBody is the JSON shape of Body.Fault.
type FaultBody struct {
	Code struct {
		Value string `json:"Value"`
	} `json:"Code"`
	Reason struct {
		Text string `json:"Text"`
	} `json:"Reason"`
	Detail struct {
		Error struct {
			Code  string `json:"Code"`
			Trace string `json:"Trace,omitempty"`
		} `json:"Error"`
	} `json:"Detail"`
}

// Fault is a server-side failure of a single operation.
type Fault struct {
	Op     string
	Code   string
	Reason string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("soap fault on %s: %s (%s)", f.Op, f.Reason, f.Code)
}

func newFault(op string, body FaultBody) *Fault {
	return &Fault{
		Op:     op,
		Code:   body.Detail.Error.Code,
		Reason: body.Reason.Text,
	}
}

// IsFault reports whether err (or any error in its chain) is a fault with
// the given code.
func IsFault(err error, code string) bool {
	var f *Fault
	return errors.As(err, &f) && f.Code == code
}

// AuthError indicates that the session is not, or no longer, authenticated.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err is an AuthError or an authentication
// fault.
func IsAuthError(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	return IsFault(err, CodeAuthExpired) ||
		IsFault(err, CodeAuthRequired) ||
		IsFault(err, CodeAuthFailed)
}
