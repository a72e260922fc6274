// Package identity signs users up and in against a managed identity provider and
// turns provider failures into fixed, user-facing messages.
//
// The signed-in user is carried in an explicit *Session value rather than in
// package state: SignUp, LogIn and SignInWithProvider return a fresh Session,
// LogOut and DeleteCurrentUser clear it.
package identity

import (
	"context"
	"errors"
	"log"
)

type Kind int

const (
	KindProvider Kind = iota
	KindValidation
	KindConflict
	KindNoSession
	KindUnauthorized
)

// ErrNoSession matches every error returned because no user is signed in.
var ErrNoSession = errors.New("no user is currently signed in")

const (
	msgInvalidEmail       = "The email address is not valid."
	msgEmailInUse         = "The email address is already in use by another account."
	msgWeakPassword       = "The password is too weak."
	msgNetworkFailed      = "A network error occurred. Please try again."
	msgSignUpUnexpected   = "An unexpected error occurred during sign up."
	msgUserDisabled       = "This user account has been disabled by an administrator."
	msgInvalidCredential  = "Incorrect credentials. Please try again."
	msgExternalSignIn     = "Failed to sign in with Google. Please try again."
	msgUpdateUsername     = "Error updating the username."
	msgUpdateNoSession    = "Couldn't update the username. No user currently signed in."
	msgLogOutNoSession    = "Attempted to sign out, but no user is currently signed in."
	msgDeleteNoSession    = "Attempted to delete the user, but no user is currently signed in."
	msgReauthRequired     = "Re-authentication required"
	msgInvalidSessionText = "The session is no longer valid. Please sign in again."
)

var signUpMessages = map[string]string{
	CodeInvalidEmail:  msgInvalidEmail,
	CodeEmailInUse:    msgEmailInUse,
	CodeWeakPassword:  msgWeakPassword,
	CodeNetworkFailed: msgNetworkFailed,
}

var logInMessages = map[string]string{
	CodeInvalidEmail:      msgInvalidEmail,
	CodeUserDisabled:      msgUserDisabled,
	CodeInvalidCredential: msgInvalidCredential,
}

// Error is the normalized failure returned by every Client operation.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Session holds the currently authenticated user, if any.
type Session struct {
	user *Credential
}

// User returns the signed-in credential, or nil once the session is cleared.
func (s *Session) User() *Credential {
	if s == nil {
		return nil
	}
	return s.user
}

func (s *Session) Active() bool {
	return s != nil && s.user != nil
}

func (s *Session) clear() {
	s.user = nil
}

type Client struct {
	provider Provider
}

func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// SignUp creates an account and stores username as its display name.
func (c *Client) SignUp(ctx context.Context, username, email, password string) (*Session, error) {
	cred, err := c.provider.CreateUser(ctx, email, password)
	if err != nil {
		return nil, mapError(err, signUpMessages, msgSignUpUnexpected, false)
	}

	cred, err = c.provider.UpdateProfile(ctx, cred, username)
	if err != nil {
		return nil, mapError(err, signUpMessages, msgSignUpUnexpected, false)
	}

	return &Session{user: cred}, nil
}

func (c *Client) LogIn(ctx context.Context, email, password string) (*Session, error) {
	cred, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, mapError(err, logInMessages, "", true)
	}
	return &Session{user: cred}, nil
}

// SignInWithProvider exchanges an external identity provider assertion for a session.
func (c *Client) SignInWithProvider(ctx context.Context, postBody, requestURI string) (*Session, error) {
	cred, err := c.provider.SignInWithIdP(ctx, postBody, requestURI)
	if err != nil {
		log.Printf("SignInWithProvider: %v", err)
		return nil, &Error{Kind: kindFor(codeOf(err)), Code: codeOf(err), Message: msgExternalSignIn, Err: err}
	}
	return &Session{user: cred}, nil
}

// Resume rebuilds a session from an ID token issued earlier. An empty token yields a nil
// session so callers can let the operation itself report the missing session.
func (c *Client) Resume(ctx context.Context, idToken string) (*Session, error) {
	if idToken == "" {
		return nil, nil
	}
	cred, err := c.provider.Lookup(ctx, idToken)
	if err != nil {
		return nil, &Error{Kind: KindUnauthorized, Code: codeOf(err), Message: msgInvalidSessionText, Err: err}
	}
	return &Session{user: cred}, nil
}

func (c *Client) UpdateUsername(ctx context.Context, s *Session, username string) error {
	if !s.Active() {
		return noSession(msgUpdateNoSession)
	}

	cred, err := c.provider.UpdateProfile(ctx, s.user, username)
	if err != nil {
		log.Printf("UpdateUsername: Error updating username: %v", err)
		return &Error{Kind: kindFor(codeOf(err)), Code: codeOf(err), Message: msgUpdateUsername, Err: err}
	}

	s.user = cred
	return nil
}

func (c *Client) LogOut(ctx context.Context, s *Session) error {
	if !s.Active() {
		return noSession(msgLogOutNoSession)
	}

	if err := c.provider.SignOut(ctx, s.user); err != nil {
		log.Printf("LogOut: Error signing out: %v", err)
		return &Error{Kind: kindFor(codeOf(err)), Code: codeOf(err), Message: rawMessage(err), Err: err}
	}

	s.clear()
	return nil
}

func (c *Client) DeleteCurrentUser(ctx context.Context, s *Session) error {
	if !s.Active() {
		return noSession(msgDeleteNoSession)
	}

	if err := c.provider.DeleteUser(ctx, s.user); err != nil {
		code := codeOf(err)
		if code == CodeRequiresRecentLogin {
			log.Println("DeleteCurrentUser: User needs to re-authenticate before deleting the account.")
			return &Error{Kind: KindUnauthorized, Code: code, Message: msgReauthRequired, Err: err}
		}
		return &Error{Kind: kindFor(code), Code: code, Message: rawMessage(err), Err: err}
	}

	s.clear()
	return nil
}

func noSession(message string) error {
	return &Error{Kind: KindNoSession, Message: message, Err: ErrNoSession}
}

// mapError translates a provider failure using messages. Unknown codes get fallback, or
// the provider's own message when useRaw is set.
func mapError(err error, messages map[string]string, fallback string, useRaw bool) error {
	code := codeOf(err)
	msg, ok := messages[code]
	if !ok {
		if useRaw {
			msg = rawMessage(err)
		} else {
			msg = fallback
		}
	}
	return &Error{Kind: kindFor(code), Code: code, Message: msg, Err: err}
}

func codeOf(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return CodeInternal
}

func rawMessage(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	return err.Error()
}

func kindFor(code string) Kind {
	switch code {
	case CodeInvalidEmail, CodeWeakPassword:
		return KindValidation
	case CodeEmailInUse:
		return KindConflict
	case CodeUserDisabled, CodeInvalidCredential, CodeRequiresRecentLogin, CodeInvalidIDToken:
		return KindUnauthorized
	}
	return KindProvider
}
