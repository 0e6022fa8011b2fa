package identity

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
)

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleDriver, ParseRole("driver"))
	assert.Equal(t, RoleAdmin, ParseRole(" Admin "))
	assert.Equal(t, RoleConductor, ParseRole("conductor"))
	assert.Equal(t, RolePassenger, ParseRole(""))
	assert.Equal(t, RolePassenger, ParseRole("superuser"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "asha", Identity{Email: "asha@example.com"}.DisplayName())
	assert.Equal(t, "uid-1", Identity{UserID: "uid-1"}.DisplayName())
}

func TestDevelopmentProvider(t *testing.T) {
	identity, err := DevelopmentProvider{}.Verify(context.Background(), "driver:ravi@example.com")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "ravi@example.com", Email: "ravi@example.com", Role: RoleDriver}, identity)

	_, err = DevelopmentProvider{}.Verify(context.Background(), "nonsense")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

type fakeVerifier struct {
	token *auth.Token
	err   error
}

func (f fakeVerifier) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return f.token, f.err
}

func TestFirebaseProvider(t *testing.T) {
	provider := &FirebaseProvider{Client: fakeVerifier{token: &auth.Token{
		UID:    "uid-7",
		Claims: map[string]interface{}{"email": "meera@example.com", "role": "conductor"},
	}}}

	identity, err := provider.Verify(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "uid-7", Email: "meera@example.com", Role: RoleConductor}, identity)

	provider.Client = fakeVerifier{err: errors.New("expired")}
	_, err = provider.Verify(context.Background(), "token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

type fakeUsers struct {
	records []*auth.ExportedUserRecord
	err     error
}

func (f *fakeUsers) Next() (*auth.ExportedUserRecord, error) {
	if len(f.records) == 0 {
		if f.err != nil {
			return nil, f.err
		}
		return nil, iterator.Done
	}

	record := f.records[0]
	f.records = f.records[1:]

	return record, nil
}

func userWithClaims(claims map[string]interface{}) *auth.ExportedUserRecord {
	return &auth.ExportedUserRecord{UserRecord: &auth.UserRecord{CustomClaims: claims}}
}

func TestFirebaseCountRoles(t *testing.T) {
	var counter RoleCounter = &FirebaseProvider{Users: func(context.Context) userIterator {
		return &fakeUsers{records: []*auth.ExportedUserRecord{
			userWithClaims(map[string]interface{}{"role": "driver"}),
			userWithClaims(map[string]interface{}{"role": "driver"}),
			userWithClaims(map[string]interface{}{"role": "admin"}),
			userWithClaims(nil),
			{},
		}}
	}}

	counts, err := counter.CountRoles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[Role]int{RoleDriver: 2, RoleAdmin: 1, RolePassenger: 2}, counts)

	failing := &FirebaseProvider{Users: func(context.Context) userIterator {
		return &fakeUsers{err: errors.New("quota exceeded")}
	}}
	_, err = failing.CountRoles(context.Background())
	assert.Error(t, err)

	_, err = (&FirebaseProvider{}).CountRoles(context.Background())
	assert.Error(t, err)
}

type fakeValidator struct {
	claims interface{}
	err    error
}

func (f fakeValidator) ValidateToken(context.Context, string) (interface{}, error) {
	return f.claims, f.err
}

func TestJWKSProvider(t *testing.T) {
	provider := &JWKSProvider{Validator: fakeValidator{claims: &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: "auth0|42"},
		CustomClaims:     &CustomClaims{Email: "admin@example.com", Role: "admin"},
	}}}

	identity, err := provider.Verify(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "auth0|42", Email: "admin@example.com", Role: RoleAdmin}, identity)

	provider.Validator = fakeValidator{err: errors.New("bad signature")}
	_, err = provider.Verify(context.Background(), "token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
