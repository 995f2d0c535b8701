package types

// LoginRequest contains credentials for operator authentication
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is an operator allowed to trigger write actions.
type User struct {
	Username string `json:"username"`
	Hash     []byte `json:"-"`
	Role     string `json:"role"`
}

// SwitchAccountRequest replaces the signing key of the service wallet.
type SwitchAccountRequest struct {
	PrivateKey string `json:"privateKey"`
}
