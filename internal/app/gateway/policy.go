package gateway

// AuthPolicy is the per-event admission rule the dispatcher enforces before a
// handler runs. Vocabulary checks on the client type value stay in the
// protocol handlers; the policy only requires presence.
type AuthPolicy struct {
	// Public events run for any connection, authenticated or not.
	Public bool

	// RequireClientType additionally demands a resolved client type on the
	// connection record.
	RequireClientType bool
}

var (
	publicPolicy    = AuthPolicy{Public: true}
	protectedPolicy = AuthPolicy{RequireClientType: true}
)
