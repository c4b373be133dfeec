// Package roster holds the fixed set of identities allowed to sign in. It is loaded once at
// startup from a YAML file and never mutated.
package roster

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/vytor/chessduel/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

type file struct {
	Identities []models.Identity `yaml:"identities"`
}

type Roster struct {
	identities []models.Identity
	byID       map[string]models.Identity
	dummyHash  []byte
}

// Load reads a roster file.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return Parse(data)
}

// Parse decodes a roster document:
//
//	identities:
//	  - id: grandpa
//	    display_name: Grandpa
//	    password_hash: $2a$10$...
func Parse(data []byte) (*Roster, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return New(f.Identities)
}

// New validates identities and builds a Roster. Exactly two identities are required.
func New(identities []models.Identity) (*Roster, error) {
	if len(identities) != 2 {
		return nil, fmt.Errorf("roster must define exactly two identities, got %d", len(identities))
	}

	r := &Roster{byID: make(map[string]models.Identity, len(identities))}
	cost := bcrypt.DefaultCost
	for i, id := range identities {
		id.ID = Normalize(id.ID)
		if id.ID == "" {
			return nil, fmt.Errorf("identity %d: id is required", i)
		}
		if _, dup := r.byID[id.ID]; dup {
			return nil, fmt.Errorf("identity %q defined twice", id.ID)
		}
		c, err := bcrypt.Cost([]byte(id.CredentialHash))
		if err != nil {
			return nil, fmt.Errorf("identity %q: invalid password_hash: %w", id.ID, err)
		}
		cost = c
		if id.DisplayName == "" {
			id.DisplayName = id.ID
		}
		r.byID[id.ID] = id
		r.identities = append(r.identities, id)
	}

	// unknown usernames are checked against this so both failure paths cost one bcrypt compare
	dummy, err := bcrypt.GenerateFromPassword([]byte("chessduel-unknown-identity"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare roster: %w", err)
	}
	r.dummyHash = dummy
	return r, nil
}

// Normalize trims and lower-cases a username.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Authenticate checks a username and password against the roster.
func (r *Roster) Authenticate(username, password string) (models.Identity, error) {
	id, ok := r.byID[Normalize(username)]
	hash := r.dummyHash
	if ok {
		hash = []byte(id.CredentialHash)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !ok {
		return models.Identity{}, ErrInvalidCredentials
	}
	return id, nil
}

// Lookup returns the identity with the given id.
func (r *Roster) Lookup(id string) (models.Identity, bool) {
	ident, ok := r.byID[id]
	return ident, ok
}

// Opponent returns the other identity of the pair.
func (r *Roster) Opponent(id string) (models.Identity, error) {
	if _, ok := r.byID[id]; !ok {
		return models.Identity{}, fmt.Errorf("unknown identity %q", id)
	}
	for _, other := range r.identities {
		if other.ID != id {
			return other, nil
		}
	}
	return models.Identity{}, fmt.Errorf("no opponent for %q", id)
}

// Identities returns the roster in file order.
func (r *Roster) Identities() []models.Identity {
	return append([]models.Identity(nil), r.identities...)
}

// HashPassword returns a bcrypt hash suitable for a roster file. A non-positive cost uses
// bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
