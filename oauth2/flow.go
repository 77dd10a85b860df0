package oauth2

// LoginState is a step of the per-provider login flow:
//
//	Anonymous -> PendingProviderRedirect -> PendingCallback -> Authenticated | Failed
type LoginState int

const (
	Anonymous LoginState = iota
	PendingProviderRedirect
	PendingCallback
	Authenticated
	Failed
)

func (s LoginState) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case PendingProviderRedirect:
		return "pending_provider_redirect"
	case PendingCallback:
		return "pending_callback"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s LoginState) Terminal() bool {
	return s == Authenticated || s == Failed
}
