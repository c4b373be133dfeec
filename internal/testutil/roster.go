package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vytor/chessduel/internal/models"
	"github.com/vytor/chessduel/internal/roster"
	"golang.org/x/crypto/bcrypt"
)

// Test identities and their passwords.
const (
	Grandpa         = "grandpa"
	GrandpaPassword = "knight-to-f3"
	Jackson         = "jackson"
	JacksonPassword = "queen-to-h4"
)

// NewRoster returns the two-identity roster used across tests, hashed at bcrypt.MinCost.
func NewRoster(t *testing.T) *roster.Roster {
	t.Helper()
	hash := func(pw string) string {
		h, err := roster.HashPassword(pw, bcrypt.MinCost)
		require.NoError(t, err)
		return h
	}
	r, err := roster.New([]models.Identity{
		{ID: Grandpa, DisplayName: "Grandpa", CredentialHash: hash(GrandpaPassword)},
		{ID: Jackson, DisplayName: "Jackson", CredentialHash: hash(JacksonPassword)},
	})
	require.NoError(t, err)
	return r
}
