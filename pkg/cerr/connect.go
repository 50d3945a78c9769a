package cerr

import (
	"context"
	"errors"

	"connectrpc.com/connect"
)

// ConnectError converts e into the error connect sends on the wire. Details
// that fail to encode are dropped.
func (e *Error) ConnectError() *connect.Error {
	ce := connect.NewError(e.Code.ConnectCode(), errors.New(e.Msg))
	for _, msg := range e.Details {
		if d, err := connect.NewErrorDetail(msg); err == nil {
			ce.AddDetail(d)
		}
	}
	return ce
}

func ExtractConnectError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return resolve(ctx, err).ConnectError()
}

// NewConvertConnectErrorInterceptor rewrites handler errors into connect
// errors. Only the health service is mounted over connect, so streaming
// calls pass through untouched.
func NewConvertConnectErrorInterceptor() connect.Interceptor {
	return connect.UnaryInterceptorFunc(func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			resp, err := next(ctx, req)
			return resp, ExtractConnectError(ctx, err)
		}
	})
}
