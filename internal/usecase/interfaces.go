package usecase

import "context"

// TokenVerifier turns a bearer token into the authenticated user id.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// TokenIssuer mints bearer tokens; only available with locally signed tokens.
type TokenIssuer interface {
	IssueToken(userID string) (string, error)
}
