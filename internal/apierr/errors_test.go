package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResponse_Classifies(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"unprocessable", http.StatusUnprocessableEntity, ErrUnprocessable},
		{"server", http.StatusInternalServerError, ErrServer},
		{"not found is a server kind", http.StatusNotFound, ErrServer},
		{"forbidden is a server kind", http.StatusForbidden, ErrServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromResponse("op", tt.status, nil)
			assert.ErrorIs(t, err, tt.sentinel)
			for _, other := range []error{ErrNetwork, ErrUnauthorized, ErrUnprocessable, ErrServer} {
				if other == tt.sentinel {
					continue
				}
				assert.NotErrorIs(t, err, other)
			}
		})
	}
}

func TestFromResponse_ParsesErrorBody(t *testing.T) {
	body := []byte(`{"message":"The given data was invalid.","errors":{"email":["The email has already been taken."],"name":["Too short.","Bad."]}}`)
	err := FromResponse("register", http.StatusUnprocessableEntity, body)

	assert.Equal(t, "The given data was invalid.", Message(err))
	assert.Equal(t, []string{"The email has already been taken."}, FieldErrors(err)["email"])
	assert.Equal(t, []string{
		"email: The email has already been taken.",
		"name: Too short.",
		"name: Bad.",
	}, FieldSummary(err))
}

func TestFromResponse_NullMessageAndGarbageBody(t *testing.T) {
	err := FromResponse("login", http.StatusUnauthorized, []byte(`{"message":null,"errors":{}}`))
	assert.Empty(t, Message(err))
	assert.Nil(t, FieldErrors(err))

	err = FromResponse("login", http.StatusUnauthorized, []byte("<html>nope</html>"))
	assert.True(t, IsUnauthorized(err))
	assert.Empty(t, Message(err))
}

func TestWrappedErrorsStillMatch(t *testing.T) {
	base := Network("fetch posts", context.DeadlineExceeded)
	wrapped := fmt.Errorf("page 2: %w", base)

	assert.ErrorIs(t, wrapped, ErrNetwork)
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
	assert.True(t, IsRetryable(wrapped))

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestRetryability(t *testing.T) {
	assert.False(t, IsRetryable(Unauthenticated("fetch posts")))
	assert.False(t, IsRetryable(Invalid("create post", map[string][]string{"title": {"required"}})))
	assert.True(t, IsRetryable(FromResponse("fetch posts", http.StatusBadGateway, nil)))
	assert.True(t, IsRetryable(Malformed("fetch posts", http.StatusOK, errors.New("eof"))))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(FromResponse("get post", http.StatusNotFound, nil)))
	assert.False(t, IsNotFound(FromResponse("get post", http.StatusInternalServerError, nil)))
}

func TestErrorString(t *testing.T) {
	err := FromResponse("delete post", http.StatusInternalServerError, []byte(`{"message":"Server Error"}`))
	assert.Equal(t, "delete post: server error (status 500): Server Error", err.Error())

	err = Network("login", errors.New("connection refused"))
	assert.Equal(t, "login: network error: connection refused", err.Error())
}
