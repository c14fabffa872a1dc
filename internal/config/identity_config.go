package config

// IdentityConfig carries the identity-provider settings used to build the
// login redirect. The provider performs user authentication; the gateway only
// consumes the redirect it sends back.
type IdentityConfig interface {
	GetIdentityIssuerURL() string
	GetIdentityClientID() string
	GetIdentityScopes() []string
	GetCallbackURL() string
	GetLoginReturnURL() string
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetIdentityIssuerURL() string {
	return GetEnv("IDENTITY_ISSUER_URL", "https://platformedge.eu.auth0.com/")
}

func (Identity) GetIdentityClientID() string {
	return GetEnv("IDENTITY_CLIENT_ID", "")
}

func (Identity) GetIdentityScopes() []string {
	return []string{"openid", "profile", "email"}
}

// GetCallbackURL is the absolute redirect URI registered with the provider.
func (Identity) GetCallbackURL() string {
	return GetEnv("CALLBACK_URL", "http://localhost:8080/auth/callback")
}

// GetLoginReturnURL is where users land after a failed or abandoned login.
func (Identity) GetLoginReturnURL() string {
	return GetEnv("LOGIN_RETURN_URL", "/auth/login")
}
