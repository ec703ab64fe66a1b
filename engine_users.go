package accesshub

import (
	"context"

	"github.com/MrEthical07/accesshub/internal/flows"
)

// credentialUsers adapts a CredentialStore to the flows' user view.
type credentialUsers struct {
	store CredentialStore
}

func (u credentialUsers) FindByEmail(ctx context.Context, email string) (flows.User, error) {
	rec, err := u.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return flows.User{}, err
	}
	return userOf(rec), nil
}

func (u credentialUsers) FindByID(ctx context.Context, id string) (flows.User, error) {
	rec, err := u.store.FindByID(ctx, id)
	if err != nil {
		return flows.User{}, err
	}
	return userOf(rec), nil
}

func (u credentialUsers) Create(ctx context.Context, nu flows.NewUser) (flows.User, error) {
	rec, err := u.store.Create(ctx, NewUser{
		UserID:       nu.ID,
		Email:        normalizeEmail(nu.Email),
		Name:         nu.Name,
		PasswordHash: nu.PasswordHash,
	})
	if err != nil {
		return flows.User{}, err
	}
	return userOf(rec), nil
}

func userOf(rec UserRecord) flows.User {
	return flows.User{
		ID:           rec.UserID,
		Email:        rec.Email,
		Name:         rec.Name,
		PasswordHash: rec.PasswordHash,
	}
}
