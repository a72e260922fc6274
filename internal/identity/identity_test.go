package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() (*Client, *MemoryProvider) {
	provider := NewMemoryProvider()
	return NewClient(provider), provider
}

func TestSignUp_SetsEmailAndDisplayName(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()

	email := "testuser_" + time.Now().Format("20060102150405") + "@test.com"
	session, err := client.SignUp(ctx, "test", email, "testpassword123")
	require.NoError(t, err)
	require.True(t, session.Active())

	assert.Equal(t, email, session.User().Email)
	assert.Equal(t, "test", session.User().DisplayName)
	assert.NotEmpty(t, session.User().IDToken)

	require.NoError(t, client.DeleteCurrentUser(ctx, session))
	assert.False(t, session.Active())
}

func TestSignUpAndLogIn_InvalidEmail(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()

	emails := []string{
		"fakeemail.com",
		"spaced email@gmail.com",
		"missingdomain@",
		"test@doma!n.com",
	}

	for _, email := range emails {
		t.Run(email, func(t *testing.T) {
			_, err := client.SignUp(ctx, "test", email, "password123")
			require.Error(t, err)
			assert.EqualError(t, err, "The email address is not valid.")

			_, err = client.LogIn(ctx, email, "password123")
			require.Error(t, err)
			assert.EqualError(t, err, "The email address is not valid.")

			var idErr *Error
			require.True(t, errors.As(err, &idErr))
			assert.Equal(t, KindValidation, idErr.Kind)
		})
	}
}

func TestSignUp_EmailInUse(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()

	_, err := client.SignUp(ctx, "test", "test@example.com", "password123")
	require.NoError(t, err)

	_, err = client.SignUp(ctx, "test", "test@example.com", "redundantEmail123")
	require.Error(t, err)
	assert.EqualError(t, err, "The email address is already in use by another account.")

	var idErr *Error
	require.True(t, errors.As(err, &idErr))
	assert.Equal(t, KindConflict, idErr.Kind)
}

func TestSignUp_WeakPassword(t *testing.T) {
	client, _ := newTestClient()

	_, err := client.SignUp(context.Background(), "test", "testingpasswords@gmail.com", "short")
	require.Error(t, err)
	assert.EqualError(t, err, "The password is too weak.")
}

func TestLogIn(t *testing.T) {
	client, provider := newTestClient()
	ctx := context.Background()

	_, err := client.SignUp(ctx, "test", "test@example.com", "password123")
	require.NoError(t, err)

	t.Run("existing user", func(t *testing.T) {
		session, err := client.LogIn(ctx, "test@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, "test@example.com", session.User().Email)
		assert.Equal(t, "test", session.User().DisplayName)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := client.LogIn(ctx, "test@example.com", "wrongpassword")
		assert.EqualError(t, err, "Incorrect credentials. Please try again.")
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := client.LogIn(ctx, "nobody@example.com", "password123")
		assert.EqualError(t, err, "Incorrect credentials. Please try again.")
	})

	t.Run("disabled user", func(t *testing.T) {
		provider.Disable("test@example.com")
		_, err := client.LogIn(ctx, "test@example.com", "password123")
		assert.EqualError(t, err, "This user account has been disabled by an administrator.")
	})
}

func TestLogOut(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		err := client.LogOut(ctx, nil)
		require.Error(t, err)
		assert.EqualError(t, err, "Attempted to sign out, but no user is currently signed in.")
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("after login", func(t *testing.T) {
		_, err := client.SignUp(ctx, "test", "logout@example.com", "password123")
		require.NoError(t, err)

		session, err := client.LogIn(ctx, "logout@example.com", "password123")
		require.NoError(t, err)

		require.NoError(t, client.LogOut(ctx, session))
		assert.False(t, session.Active())
		assert.Nil(t, session.User())

		err = client.LogOut(ctx, session)
		assert.ErrorIs(t, err, ErrNoSession)
	})
}

func TestLogOut_RevokesTokens(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()

	session, err := client.SignUp(ctx, "test", "revoke@example.com", "password123")
	require.NoError(t, err)
	token := session.User().IDToken

	require.NoError(t, client.LogOut(ctx, session))

	_, err = client.Resume(ctx, token)
	require.Error(t, err)
	var idErr *Error
	require.True(t, errors.As(err, &idErr))
	assert.Equal(t, KindUnauthorized, idErr.Kind)
}

func TestUpdateUsername(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		err := client.UpdateUsername(ctx, nil, "newname")
		assert.EqualError(t, err, "Couldn't update the username. No user currently signed in.")
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("signed in", func(t *testing.T) {
		session, err := client.SignUp(ctx, "oldname", "rename@example.com", "password123")
		require.NoError(t, err)

		require.NoError(t, client.UpdateUsername(ctx, session, "newname"))
		assert.Equal(t, "newname", session.User().DisplayName)

		resumed, err := client.Resume(ctx, session.User().IDToken)
		require.NoError(t, err)
		assert.Equal(t, "newname", resumed.User().DisplayName)
	})
}

func TestDeleteCurrentUser(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		client, _ := newTestClient()
		err := client.DeleteCurrentUser(ctx, nil)
		assert.EqualError(t, err, "Attempted to delete the user, but no user is currently signed in.")
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("stale login requires re-authentication", func(t *testing.T) {
		client, provider := newTestClient()
		now := time.Now()
		provider.Now = func() time.Time { return now }

		session, err := client.SignUp(ctx, "test", "stale@example.com", "password123")
		require.NoError(t, err)

		now = now.Add(time.Hour)
		err = client.DeleteCurrentUser(ctx, session)
		assert.EqualError(t, err, "Re-authentication required")
		assert.True(t, session.Active())
	})

	t.Run("deleted user cannot log in", func(t *testing.T) {
		client, _ := newTestClient()
		session, err := client.SignUp(ctx, "test", "gone@example.com", "password123")
		require.NoError(t, err)

		require.NoError(t, client.DeleteCurrentUser(ctx, session))

		_, err = client.LogIn(ctx, "gone@example.com", "password123")
		assert.EqualError(t, err, "Incorrect credentials. Please try again.")
	})
}

func TestSignInWithProvider(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()

	session, err := client.SignInWithProvider(ctx, "providerId=google.com&email=google%40example.com&displayName=Goog", "http://localhost")
	require.NoError(t, err)
	assert.Equal(t, "google@example.com", session.User().Email)
	assert.Equal(t, "Goog", session.User().DisplayName)

	_, err = client.SignInWithProvider(ctx, "email=google%40example.com", "http://localhost")
	assert.EqualError(t, err, "Failed to sign in with Google. Please try again.")
}

func TestResume_EmptyToken(t *testing.T) {
	client, _ := newTestClient()

	session, err := client.Resume(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.False(t, session.Active())
}

type failingProvider struct {
	MemoryProvider
	err error
}

func (p *failingProvider) CreateUser(ctx context.Context, email, password string) (*Credential, error) {
	return nil, p.err
}

func (p *failingProvider) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	return nil, p.err
}

func TestErrorMapping_Fallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("network failure on sign up", func(t *testing.T) {
		client := NewClient(&failingProvider{err: providerError(CodeNetworkFailed, "dial tcp: timeout")})
		_, err := client.SignUp(ctx, "test", "a@b.com", "password123")
		assert.EqualError(t, err, "A network error occurred. Please try again.")
	})

	t.Run("unknown sign up code", func(t *testing.T) {
		client := NewClient(&failingProvider{err: providerError(CodeInternal, "boom")})
		_, err := client.SignUp(ctx, "test", "a@b.com", "password123")
		assert.EqualError(t, err, "An unexpected error occurred during sign up.")
	})

	t.Run("unknown log in code keeps provider message", func(t *testing.T) {
		client := NewClient(&failingProvider{err: providerError(CodeInternal, "TOO_MANY_ATTEMPTS_TRY_LATER")})
		_, err := client.LogIn(ctx, "a@b.com", "password123")
		assert.EqualError(t, err, "TOO_MANY_ATTEMPTS_TRY_LATER")
	})
}

func TestCodeFromToolkitMessage(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"EMAIL_EXISTS", CodeEmailInUse},
		{"INVALID_EMAIL", CodeInvalidEmail},
		{"WEAK_PASSWORD : Password should be at least 6 characters", CodeWeakPassword},
		{"INVALID_LOGIN_CREDENTIALS", CodeInvalidCredential},
		{"USER_DISABLED", CodeUserDisabled},
		{"CREDENTIAL_TOO_OLD_LOGIN_AGAIN", CodeRequiresRecentLogin},
		{"INVALID_ID_TOKEN", CodeInvalidIDToken},
		{"SOMETHING_NEW", CodeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeFromToolkitMessage(tt.message), tt.message)
	}
}
