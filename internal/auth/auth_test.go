package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := CreateToken(userID, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	gotID, gotName, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, "alice", gotName)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, _, err := ParseToken("not.a.token")
	assert.ErrorIs(t, err, ErrAuthRequired)
}
