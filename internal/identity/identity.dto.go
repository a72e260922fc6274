package identity

type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LogInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProviderSignInRequest carries an external provider assertion, e.g.
// "id_token=...&providerId=google.com".
type ProviderSignInRequest struct {
	PostBody   string `json:"postBody"`
	RequestURI string `json:"requestUri"`
}

type UpdateUsernameRequest struct {
	Username string `json:"username"`
}

type SessionResponse struct {
	Session *Credential `json:"session"`
}
