package apperr_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
)

func TestIs_MatchesByKindAndCode(t *testing.T) {
	err := fmt.Errorf("join: %w", apperr.Conflict(apperr.CodeCapacityFull, "some other message"))

	assert.ErrorIs(t, err, apperr.ErrCapacityFull)
	assert.NotErrorIs(t, err, apperr.ErrAlreadyParticipant)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"authentication", apperr.Authentication(apperr.CodeExpired, "expired"), apperr.KindAuthentication},
		{"authorization", apperr.Forbidden(apperr.CodeNotOwner, "nope", "user"), apperr.KindAuthorization},
		{"rate limit", apperr.RateLimited(time.Second), apperr.KindRateLimit},
		{"conflict", apperr.ErrDuplicatePending, apperr.KindConflict},
		{"not found", apperr.NotFound("post"), apperr.KindNotFound},
		{"validation", apperr.Validation(apperr.CodeInvalidCapacity, "bad"), apperr.KindValidation},
		{"untyped", errors.New("boom"), apperr.KindInternal},
		{"wrapped", fmt.Errorf("ctx: %w", apperr.NotFound("request")), apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.KindOf(tt.err))
		})
	}
}

func TestInternal_KeepsCauseOutOfMessage(t *testing.T) {
	cause := errors.New("database is locked")
	err := apperr.Internal(cause)

	assert.Equal(t, "internal error", err.Message)
	assert.Equal(t, apperr.CodeInternal, err.Code)
	assert.ErrorIs(t, err, cause)
}

func TestRoleRequired_CopiesAllowSet(t *testing.T) {
	allowed := []string{"moderator", "admin"}
	err := apperr.RoleRequired("user", allowed)
	allowed[0] = "mutated"

	require.Len(t, err.RequiredRoles, 2)
	assert.Equal(t, "moderator", err.RequiredRoles[0])
	assert.Equal(t, "user", err.Role)
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, apperr.Normalize(nil))

	typed := apperr.NotFound("post")
	assert.Same(t, typed, apperr.Normalize(fmt.Errorf("w: %w", typed)))

	n := apperr.Normalize(errors.New("x"))
	assert.Equal(t, apperr.KindInternal, n.Kind)
}
