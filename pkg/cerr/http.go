package cerr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kazz187/workguild/pkg/clog"
)

// reply collects what a handler wants written. The middleware writes it after
// the handler returns so every response goes through one encoder.
type reply struct {
	body any
	err  error
}

type replyKey struct{}

func replyFrom(ctx context.Context) *reply {
	r, _ := ctx.Value(replyKey{}).(*reply)
	return r
}

// SetJSONResponse records the value the middleware encodes once the handler
// returns. Handlers never write the body themselves.
func SetJSONResponse(ctx context.Context, body any) {
	if r := replyFrom(ctx); r != nil {
		r.body = body
	}
}

func SetJSONError(ctx context.Context, err error) {
	if r := replyFrom(ctx); r != nil {
		r.err = err
	}
}

func SetNewJSONError(ctx context.Context, code Code, msg string, err error) {
	SetJSONError(ctx, NewError(code, msg, err))
}

func NewConvertConnectErrorChiMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			r := &reply{}
			ctx := context.WithValue(req.Context(), replyKey{}, r)
			next.ServeHTTP(rw, req.WithContext(ctx))
			switch {
			case r.err != nil:
				writeError(ctx, rw, resolve(ctx, r.err))
			case r.body != nil:
				writeBody(ctx, rw, http.StatusOK, r.body)
			}
		})
	}
}

type violation struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type httpError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Violations []violation `json:"violations,omitempty"`
}

func writeError(ctx context.Context, rw http.ResponseWriter, e *Error) {
	body := httpError{Code: e.Code.String(), Message: e.Msg}
	for _, v := range e.Violations() {
		body.Violations = append(body.Violations, violation{Field: v.GetRuleId(), Message: v.GetMessage()})
	}
	writeBody(ctx, rw, e.Code.HTTPCode(), body)
}

func writeBody(ctx context.Context, rw http.ResponseWriter, status int, body any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		clog.AddError(ctx, NewError(Internal, "encode response", err))
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"code":"internal","message":"server error"}` + "\n")
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	if _, err := rw.Write(buf.Bytes()); err != nil && !errors.Is(err, context.Canceled) {
		clog.AddError(ctx, NewError(Internal, "write response", err))
	}
}
