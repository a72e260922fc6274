package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// FirebaseProvider talks to Firebase Auth through the Identity Toolkit REST API. The
// optional admin client is used to revoke refresh tokens on sign-out.
type FirebaseProvider struct {
	toolkit *identitytoolkit.Service
	admin   *auth.Client
}

func NewFirebaseProvider(ctx context.Context, apiKey string, admin *auth.Client) (*FirebaseProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("firebase web API key is required")
	}

	svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("error initializing identity toolkit: %w", err)
	}

	return &FirebaseProvider{toolkit: svc, admin: admin}, nil
}

func (p *FirebaseProvider) CreateUser(ctx context.Context, email, password string) (*Credential, error) {
	resp, err := p.toolkit.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}

	return &Credential{
		UserID:       resp.LocalId,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	resp, err := p.toolkit.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}

	return &Credential{
		UserID:       resp.LocalId,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

func (p *FirebaseProvider) SignInWithIdP(ctx context.Context, postBody, requestURI string) (*Credential, error) {
	resp, err := p.toolkit.Relyingparty.VerifyAssertion(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyAssertionRequest{
		PostBody:          postBody,
		RequestUri:        requestURI,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}

	return &Credential{
		UserID:       resp.LocalId,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

func (p *FirebaseProvider) UpdateProfile(ctx context.Context, cred *Credential, displayName string) (*Credential, error) {
	resp, err := p.toolkit.Relyingparty.SetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		IdToken:           cred.IDToken,
		DisplayName:       displayName,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}

	updated := *cred
	updated.DisplayName = resp.DisplayName
	if resp.IdToken != "" {
		updated.IDToken = resp.IdToken
		updated.RefreshToken = resp.RefreshToken
	}
	return &updated, nil
}

func (p *FirebaseProvider) DeleteUser(ctx context.Context, cred *Credential) error {
	_, err := p.toolkit.Relyingparty.DeleteAccount(&identitytoolkit.IdentitytoolkitRelyingpartyDeleteAccountRequest{
		IdToken: cred.IDToken,
		LocalId: cred.UserID,
	}).Context(ctx).Do()
	if err != nil {
		return toolkitError(err)
	}
	return nil
}

// SignOut revokes the user's refresh tokens when an admin client is configured. ID tokens
// stay valid until they expire.
func (p *FirebaseProvider) SignOut(ctx context.Context, cred *Credential) error {
	if p.admin == nil {
		return nil
	}
	if err := p.admin.RevokeRefreshTokens(ctx, cred.UserID); err != nil {
		return providerError(CodeInternal, fmt.Sprintf("failed to revoke refresh tokens: %v", err))
	}
	return nil
}

func (p *FirebaseProvider) Lookup(ctx context.Context, idToken string) (*Credential, error) {
	resp, err := p.toolkit.Relyingparty.GetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		IdToken: idToken,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}
	if len(resp.Users) == 0 {
		return nil, providerError(CodeInvalidIDToken, "USER_NOT_FOUND")
	}

	u := resp.Users[0]
	return &Credential{
		UserID:      u.LocalId,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IDToken:     idToken,
	}, nil
}

// toolkitError converts an Identity Toolkit failure into a ProviderError. Anything that
// is not an API error is treated as a network failure.
func toolkitError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return providerError(CodeNetworkFailed, err.Error())
	}
	return providerError(CodeFromToolkitMessage(apiErr.Message), apiErr.Message)
}

// CodeFromToolkitMessage maps an Identity Toolkit error message such as
// "WEAK_PASSWORD : Password should be at least 6 characters" to a provider code.
func CodeFromToolkitMessage(message string) string {
	reason := strings.TrimSpace(message)
	if i := strings.IndexAny(reason, " :"); i >= 0 {
		reason = reason[:i]
	}

	switch reason {
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return CodeInvalidEmail
	case "EMAIL_EXISTS":
		return CodeEmailInUse
	case "WEAK_PASSWORD", "MISSING_PASSWORD":
		return CodeWeakPassword
	case "USER_DISABLED":
		return CodeUserDisabled
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_IDP_RESPONSE":
		return CodeInvalidCredential
	case "CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
		return CodeRequiresRecentLogin
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "USER_NOT_FOUND":
		return CodeInvalidIDToken
	}
	return CodeInternal
}
