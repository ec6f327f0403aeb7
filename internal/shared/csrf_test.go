package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFTokenRoundTrip(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := newSession("abc")

	token := m.Token(sess)
	require.NotEmpty(t, token)
	assert.Equal(t, token, m.Token(sess))
	assert.NoError(t, m.VerifyToken(sess, token))
}

func TestCSRFTokenRejectsMismatch(t *testing.T) {
	m := NewCSRFManager("secret")

	assert.ErrorIs(t, m.VerifyToken(newSession("abc"), ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(nil, "x"), ErrCSRFTokenMissing)

	token := m.Token(newSession("abc"))
	assert.ErrorIs(t, m.VerifyToken(newSession("other"), token), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, NewCSRFManager("different").VerifyToken(newSession("abc"), token), ErrCSRFTokenMismatch)
	assert.Empty(t, m.Token(nil))
}
