package ido

// Payload is the closed set of submission bodies.
type Payload interface {
	payload()
}

type PhoneResult struct {
	Phone string `json:"phone"`
}

type KBAAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type KBAResult struct {
	KBA []KBAAnswer `json:"kba"`
}

type UserIDResult struct {
	Username string `json:"username"`
}

type WebAuthnRegisterResult struct {
	EncodedResult string `json:"webauthn_encoded_result"`
}

type BiometricsRegistrationResult struct {
	PublicKeyID string `json:"publicKeyId"`
	PublicKey   string `json:"publicKey"`
	OS          string `json:"os"`
}

type BiometricsAuthenticationResult struct {
	PublicKeyID     string `json:"publicKeyId"`
	UserIdentifier  string `json:"userIdentifier"`
	SignedChallenge string `json:"signedChallenge"`
}

type DrsActionToken struct {
	ActionToken string `json:"action_token"`
}

// Escape wraps an alternate-path submission. Params carries whatever input the
// step had collected, or nil.
type Escape struct {
	EscapeID string  `json:"escape_id"`
	Params   Payload `json:"escape_params"`
}

func (PhoneResult) payload()                    {}
func (KBAResult) payload()                      {}
func (UserIDResult) payload()                   {}
func (WebAuthnRegisterResult) payload()         {}
func (BiometricsRegistrationResult) payload()   {}
func (BiometricsAuthenticationResult) payload() {}
func (DrsActionToken) payload()                 {}
func (Escape) payload()                         {}
