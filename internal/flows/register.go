package flows

import (
	"context"
	"errors"
	"time"
)

// RegisterFailureKind classifies register flow failures for root-level mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureValidate
	RegisterFailureHash
	RegisterFailureDuplicate
	RegisterFailureCreate
	RegisterFailureIssueAccess
)

// RegisterInput is the normalized register request.
type RegisterInput struct {
	Name      string
	Email     string
	Password  string
	UserAgent string
	IP        string
}

// RegisterResult carries the created user and initial access token, or
// failure metadata.
type RegisterResult struct {
	Failure         RegisterFailureKind
	Err             error
	User            User
	AccessToken     string
	AccessExpiresAt time.Time
}

// RegisterDeps captures register flow dependencies.
type RegisterDeps struct {
	Validate     func(RegisterInput) error
	HashPassword func(string) (string, error)
	NewUserID    func() string
	Users        Users
	UserExists   error
	IssueAccess  func(ctx context.Context, userID string) (string, time.Time, error)
}

// RunRegister validates the request, creates the user and issues an initial
// access token. The email is expected to be normalized by the caller.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) RegisterResult {
	if deps.Validate != nil {
		if err := deps.Validate(in); err != nil {
			return RegisterResult{Failure: RegisterFailureValidate, Err: err}
		}
	}

	if deps.UserExists != nil {
		if _, err := deps.Users.FindByEmail(ctx, in.Email); err == nil {
			return RegisterResult{Failure: RegisterFailureDuplicate, Err: deps.UserExists}
		}
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureHash, Err: err}
	}

	user, err := deps.Users.Create(ctx, NewUser{
		ID:           deps.NewUserID(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
	})
	if err != nil {
		if deps.UserExists != nil && errors.Is(err, deps.UserExists) {
			return RegisterResult{Failure: RegisterFailureDuplicate, Err: err}
		}
		return RegisterResult{Failure: RegisterFailureCreate, Err: err}
	}

	token, expiresAt, err := deps.IssueAccess(ctx, user.ID)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureIssueAccess, Err: err, User: user}
	}

	return RegisterResult{
		Failure:         RegisterFailureNone,
		User:            user,
		AccessToken:     token,
		AccessExpiresAt: expiresAt,
	}
}
