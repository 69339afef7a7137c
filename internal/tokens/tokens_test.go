package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret")

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	userID := uuid.NewString()
	token, exp, err := Issue(userID, "buyer@example.com", "buyer", testSecret, 15*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, time.Second)

	claims, err := Parse(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID())
	assert.Equal(t, "buyer@example.com", claims.Email)
	assert.Equal(t, "buyer", claims.Role)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, exp, claims.ExpiresAt.Time, time.Second)
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()

	token, _, err := Issue(uuid.NewString(), "a@b.c", "buyer", testSecret, -time.Minute)
	require.NoError(t, err)

	claims, err := Parse(token, testSecret)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestParse_WrongSecret(t *testing.T) {
	t.Parallel()

	token, _, err := Issue(uuid.NewString(), "a@b.c", "buyer", testSecret, time.Minute)
	require.NoError(t, err)

	claims, err := Parse(token, []byte("other-secret"))
	require.Error(t, err)
	assert.Nil(t, claims)
}

func TestParse_Tampered(t *testing.T) {
	t.Parallel()

	token, _, err := Issue(uuid.NewString(), "a@b.c", "buyer", testSecret, time.Minute)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + ".eyJyb2xlIjoiYWRtaW4ifQ." + parts[2]

	claims, err := Parse(tampered, testSecret)
	require.Error(t, err)
	assert.Nil(t, claims)
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	claims, err := Parse("not-a-jwt", testSecret)
	require.Error(t, err)
	assert.Nil(t, claims)
}
