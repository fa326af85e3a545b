package jobs

import (
	"errors"
	"fmt"
)

// ErrJobNotFound はジョブが存在しないときに返ります。
var ErrJobNotFound = errors.New("job not found")

// Error は API 利用者に返すエラーです。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
