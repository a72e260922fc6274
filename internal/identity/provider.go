package identity

import (
	"context"
	"fmt"
)

// Provider error codes, following the Firebase client SDK naming.
const (
	CodeInvalidEmail        = "auth/invalid-email"
	CodeEmailInUse          = "auth/email-already-in-use"
	CodeWeakPassword        = "auth/weak-password"
	CodeNetworkFailed       = "auth/network-request-failed"
	CodeUserDisabled        = "auth/user-disabled"
	CodeInvalidCredential   = "auth/invalid-credential"
	CodeRequiresRecentLogin = "auth/requires-recent-login"
	CodeInvalidIDToken      = "auth/invalid-id-token"
	CodeInternal            = "auth/internal-error"
)

// Credential is what the provider hands back for an authenticated user.
type Credential struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Provider is the managed identity service the Client talks to.
type Provider interface {
	CreateUser(ctx context.Context, email, password string) (*Credential, error)
	SignIn(ctx context.Context, email, password string) (*Credential, error)
	SignInWithIdP(ctx context.Context, postBody, requestURI string) (*Credential, error)
	UpdateProfile(ctx context.Context, cred *Credential, displayName string) (*Credential, error)
	DeleteUser(ctx context.Context, cred *Credential) error
	SignOut(ctx context.Context, cred *Credential) error
	Lookup(ctx context.Context, idToken string) (*Credential, error)
}

// ProviderError is a failure reported by a Provider, tagged with one of the Code constants.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func providerError(code, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}
