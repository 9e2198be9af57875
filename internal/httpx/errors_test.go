package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without internal err",
			err:  NewAppError(http.StatusBadRequest, CodeParamInvalid, "invalid body", nil),
			want: "code=2002, message=invalid body",
		},
		{
			name: "error with internal err",
			err:  NewAppError(http.StatusInternalServerError, CodeInternalError, "internal error", errors.New("db connection failed")),
			want: "code=5001, message=internal error, err=db connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		err     *AppError
		status  int
		code    int
		message string
	}{
		{"unauthorized", ErrUnauthorized(""), http.StatusUnauthorized, CodeUnauthorized, "unauthorized"},
		{"invalid token", ErrInvalidToken(""), http.StatusUnauthorized, CodeInvalidToken, "invalid token"},
		{"token expired", ErrTokenExpired(""), http.StatusUnauthorized, CodeTokenExpired, "token expired"},
		{"param invalid", ErrParamInvalid("bad json"), http.StatusBadRequest, CodeParamInvalid, "bad json"},
		{"param illegal", ErrParamIllegal(""), http.StatusBadRequest, CodeParamIllegal, "parameter value illegal"},
		{"not found", ErrNotFound("intent not found"), http.StatusNotFound, CodeNotFound, "intent not found"},
		{"already exists", ErrAlreadyExists(""), http.StatusConflict, CodeAlreadyExists, "resource already exists"},
		{"state conflict", ErrStateConflict(""), http.StatusConflict, CodeStateConflict, "current state does not allow operation"},
		{"internal", ErrInternalError("", nil), http.StatusInternalServerError, CodeInternalError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.message, tt.err.Message)
		})
	}
}

func TestErrInternalError_PreservesCause(t *testing.T) {
	cause := errors.New("database connection failed")
	err := ErrInternalError("internal error", cause)

	assert.Same(t, cause, err.Err)
	assert.ErrorIs(t, err, cause)
}

func TestAsAppError(t *testing.T) {
	notFound := ErrNotFound("")
	assert.Same(t, notFound, AsAppError(fmt.Errorf("lookup: %w", notFound)))

	cause := errors.New("boom")
	got := AsAppError(cause)
	assert.Equal(t, CodeInternalError, got.Code)
	assert.Same(t, cause, got.Err)
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		code int
		min  int
		max  int
	}{
		{"CodeSuccess", CodeSuccess, 0, 0},
		{"CodeUnauthorized", CodeUnauthorized, 1000, 1099},
		{"CodeInvalidToken", CodeInvalidToken, 1000, 1099},
		{"CodeTokenExpired", CodeTokenExpired, 1000, 1099},
		{"CodeParamInvalid", CodeParamInvalid, 2000, 2099},
		{"CodeParamIllegal", CodeParamIllegal, 2000, 2099},
		{"CodeNotFound", CodeNotFound, 3000, 3999},
		{"CodeAlreadyExists", CodeAlreadyExists, 3000, 3999},
		{"CodeStateConflict", CodeStateConflict, 3000, 3999},
		{"CodeInternalError", CodeInternalError, 5000, 5999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.GreaterOrEqual(t, tt.code, tt.min)
			assert.LessOrEqual(t, tt.code, tt.max)
		})
	}
}
