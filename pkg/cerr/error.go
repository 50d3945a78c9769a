package cerr

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"buf.build/gen/go/bufbuild/protovalidate/protocolbuffers/go/buf/validate"
	"google.golang.org/protobuf/proto"

	"github.com/kazz187/workguild/pkg/clog"
)

// Error is what handlers and the engine return for failures a caller should
// see. Msg and Details are exposed; Err and Stack only reach the logs.
type Error struct {
	Code    Code
	Msg     string
	Err     error
	Stack   string
	Details []proto.Message
}

func NewError(code Code, msg string, underlying error) *Error {
	err := &Error{Code: code, Msg: msg, Err: underlying}
	if code.Severe() {
		buf := make([]byte, 2048)
		err.Stack = string(buf[:runtime.Stack(buf, false)])
	}
	return err
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AddViolation attaches a field-level validation detail.
func (e *Error) AddViolation(field, msg string) *Error {
	e.Details = append(e.Details, &validate.Violation{
		Message: proto.String(msg),
		RuleId:  proto.String(field),
	})
	return e
}

// Violations returns the attached field violations in insertion order.
func (e *Error) Violations() []*validate.Violation {
	var out []*validate.Violation
	for _, d := range e.Details {
		if v, ok := d.(*validate.Violation); ok {
			out = append(out, v)
		}
	}
	return out
}

func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// resolve maps any error returned by a handler onto an *Error and records the
// cause on the request's log attributes. Errors outside this package are
// reported as unknown so their text never reaches the caller.
func resolve(ctx context.Context, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return NewError(Canceled, "connection closed", err)
	}
	clog.AddError(ctx, err)
	var e *Error
	if !errors.As(err, &e) {
		return NewError(Unknown, "unknown error", err)
	}
	if e.Stack != "" {
		clog.AddStack(ctx, e.Stack)
	}
	clog.AddAttribute(ctx, "error_code", e.Code.String())
	return e
}
