package identity

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	minPasswordLength = 6
	defaultMaxAuthAge = 5 * time.Minute
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)+$`)

type memoryAccount struct {
	uid         string
	email       string
	password    string
	displayName string
	disabled    bool
}

type memoryToken struct {
	uid      string
	issuedAt time.Time
}

// MemoryProvider is an in-process Provider for local development and tests. It applies
// the same email and password rules as Firebase Auth.
type MemoryProvider struct {
	mu       sync.Mutex
	accounts map[string]*memoryAccount // keyed by uid
	byEmail  map[string]string
	tokens   map[string]memoryToken

	MaxAuthAge time.Duration
	Now        func() time.Time
	// SignToken mints ID tokens when set; otherwise tokens are random opaque strings.
	SignToken func(uid string, issuedAt time.Time) (string, error)
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		accounts:   make(map[string]*memoryAccount),
		byEmail:    make(map[string]string),
		tokens:     make(map[string]memoryToken),
		MaxAuthAge: defaultMaxAuthAge,
		Now:        time.Now,
	}
}

// ValidEmail reports whether email is accepted by the provider.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func (p *MemoryProvider) CreateUser(ctx context.Context, email, password string) (*Credential, error) {
	if !ValidEmail(email) {
		return nil, providerError(CodeInvalidEmail, "INVALID_EMAIL")
	}
	if len(password) < minPasswordLength {
		return nil, providerError(CodeWeakPassword, "WEAK_PASSWORD : Password should be at least 6 characters")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := p.byEmail[key]; exists {
		return nil, providerError(CodeEmailInUse, "EMAIL_EXISTS")
	}

	acct := &memoryAccount{uid: uuid.NewString(), email: email, password: password}
	p.accounts[acct.uid] = acct
	p.byEmail[key] = acct.uid

	return p.issue(acct)
}

func (p *MemoryProvider) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	if !ValidEmail(email) {
		return nil, providerError(CodeInvalidEmail, "INVALID_EMAIL")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	uid, ok := p.byEmail[strings.ToLower(email)]
	if !ok || p.accounts[uid].password != password {
		return nil, providerError(CodeInvalidCredential, "INVALID_LOGIN_CREDENTIALS")
	}
	acct := p.accounts[uid]
	if acct.disabled {
		return nil, providerError(CodeUserDisabled, "USER_DISABLED")
	}

	return p.issue(acct)
}

// SignInWithIdP accepts a form-encoded assertion carrying providerId and email, creating
// the account on first use.
func (p *MemoryProvider) SignInWithIdP(ctx context.Context, postBody, requestURI string) (*Credential, error) {
	values, err := url.ParseQuery(postBody)
	if err != nil {
		return nil, providerError(CodeInvalidCredential, "INVALID_IDP_RESPONSE")
	}
	email := values.Get("email")
	if values.Get("providerId") == "" || !ValidEmail(email) {
		return nil, providerError(CodeInvalidCredential, "INVALID_IDP_RESPONSE")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := strings.ToLower(email)
	uid, ok := p.byEmail[key]
	if !ok {
		acct := &memoryAccount{uid: uuid.NewString(), email: email, displayName: values.Get("displayName")}
		p.accounts[acct.uid] = acct
		p.byEmail[key] = acct.uid
		uid = acct.uid
	}
	acct := p.accounts[uid]
	if acct.disabled {
		return nil, providerError(CodeUserDisabled, "USER_DISABLED")
	}

	return p.issue(acct)
}

func (p *MemoryProvider) UpdateProfile(ctx context.Context, cred *Credential, displayName string) (*Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, _, err := p.resolve(cred.IDToken)
	if err != nil {
		return nil, err
	}
	acct.displayName = displayName

	updated := *cred
	updated.DisplayName = displayName
	return &updated, nil
}

func (p *MemoryProvider) DeleteUser(ctx context.Context, cred *Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, tok, err := p.resolve(cred.IDToken)
	if err != nil {
		return err
	}
	if p.Now().Sub(tok.issuedAt) > p.MaxAuthAge {
		return providerError(CodeRequiresRecentLogin, "CREDENTIAL_TOO_OLD_LOGIN_AGAIN")
	}

	delete(p.accounts, acct.uid)
	delete(p.byEmail, strings.ToLower(acct.email))
	p.revoke(acct.uid)
	return nil
}

func (p *MemoryProvider) SignOut(ctx context.Context, cred *Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.revoke(cred.UserID)
	return nil
}

func (p *MemoryProvider) Lookup(ctx context.Context, idToken string) (*Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, _, err := p.resolve(idToken)
	if err != nil {
		return nil, err
	}
	return &Credential{
		UserID:      acct.uid,
		Email:       acct.email,
		DisplayName: acct.displayName,
		IDToken:     idToken,
	}, nil
}

// Disable marks the account for email as disabled; later sign-ins fail.
func (p *MemoryProvider) Disable(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if uid, ok := p.byEmail[strings.ToLower(email)]; ok {
		p.accounts[uid].disabled = true
	}
}

func (p *MemoryProvider) issue(acct *memoryAccount) (*Credential, error) {
	issuedAt := p.Now()
	idToken := uuid.NewString()
	if p.SignToken != nil {
		signed, err := p.SignToken(acct.uid, issuedAt)
		if err != nil {
			return nil, providerError(CodeInternal, err.Error())
		}
		idToken = signed
	}

	p.tokens[idToken] = memoryToken{uid: acct.uid, issuedAt: issuedAt}
	return &Credential{
		UserID:       acct.uid,
		Email:        acct.email,
		DisplayName:  acct.displayName,
		IDToken:      idToken,
		RefreshToken: uuid.NewString(),
	}, nil
}

func (p *MemoryProvider) resolve(idToken string) (*memoryAccount, memoryToken, error) {
	tok, ok := p.tokens[idToken]
	if !ok {
		return nil, memoryToken{}, providerError(CodeInvalidIDToken, "INVALID_ID_TOKEN")
	}
	acct, ok := p.accounts[tok.uid]
	if !ok {
		return nil, memoryToken{}, providerError(CodeInvalidIDToken, "USER_NOT_FOUND")
	}
	return acct, tok, nil
}

func (p *MemoryProvider) revoke(uid string) {
	for token, t := range p.tokens {
		if t.uid == uid {
			delete(p.tokens, token)
		}
	}
}
