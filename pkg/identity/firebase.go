package identity

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
)

type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type userIterator interface {
	Next() (*auth.ExportedUserRecord, error)
}

// FirebaseProvider verifies Firebase ID tokens, the dashboard role comes from the role custom claim
type FirebaseProvider struct {
	Client tokenVerifier
	Users  func(ctx context.Context) userIterator
}

func NewFirebaseProvider(client *auth.Client) *FirebaseProvider {
	return &FirebaseProvider{
		Client: client,
		Users: func(ctx context.Context) userIterator {
			return client.Users(ctx, "")
		},
	}
}

func (p *FirebaseProvider) Verify(ctx context.Context, token string) (Identity, error) {
	verified, err := p.Client.VerifyIDToken(ctx, token)
	if err != nil {
		return Identity{}, unauthenticated("invalid firebase token", err)
	}

	email, _ := verified.Claims["email"].(string)
	role, _ := verified.Claims["role"].(string)

	return Identity{
		UserID: verified.UID,
		Email:  email,
		Role:   ParseRole(role),
	}, nil
}

// CountRoles walks every account in the project
func (p *FirebaseProvider) CountRoles(ctx context.Context) (map[Role]int, error) {
	if p.Users == nil {
		return nil, errors.New("firebase user listing is not configured")
	}

	counts := map[Role]int{}
	users := p.Users(ctx)
	for {
		user, err := users.Next()
		if errors.Is(err, iterator.Done) {
			return counts, nil
		} else if err != nil {
			return nil, err
		}

		var role string
		if user.UserRecord != nil {
			role, _ = user.CustomClaims["role"].(string)
		}
		counts[ParseRole(role)]++
	}
}
