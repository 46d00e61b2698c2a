package jwt

// Identity holds the user identity carried by a verified access token.
// The token authority encodes it as a JSON document inside the standard
// `sub` claim, so the field names follow its wire format.
type Identity struct {
	// ID is the unique identifier of the authenticated user.
	ID string `json:"id"`

	// Email is the user's email address, when the authority includes it.
	Email string `json:"email,omitempty"`

	// Username is the user's display name, when the authority includes it.
	Username string `json:"username,omitempty"`

	// Role is the numeric role assigned by the token authority.
	Role int `json:"role,omitempty"`

	// UserType is the numeric account category assigned by the token authority.
	UserType int `json:"user_type,omitempty"`
}
