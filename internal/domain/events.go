package domain

// AuthEventKind is the closed taxonomy of identity provider events. Anything
// the provider emits that is not recognized maps to EventOther, which must
// never be treated as a sign-out.
type AuthEventKind int

const (
	EventOther AuthEventKind = iota
	EventSignedIn
	EventSignedOut
	EventTokenRefreshed
	EventUserUpdated
)

func (k AuthEventKind) String() string {
	switch k {
	case EventSignedIn:
		return "SIGNED_IN"
	case EventSignedOut:
		return "SIGNED_OUT"
	case EventTokenRefreshed:
		return "TOKEN_REFRESHED"
	case EventUserUpdated:
		return "USER_UPDATED"
	default:
		return "OTHER"
	}
}

type AuthEvent struct {
	Kind   AuthEventKind
	UserID string
	// Raw is the provider's original event name, kept for logging only.
	Raw string
}

// ParseAuthEvent converts a raw provider event name into the closed taxonomy
// at the boundary, so nothing downstream matches on string literals.
func ParseAuthEvent(raw, userID string) AuthEvent {
	ev := AuthEvent{Kind: EventOther, UserID: userID, Raw: raw}
	switch raw {
	case "SIGNED_IN":
		ev.Kind = EventSignedIn
	case "SIGNED_OUT":
		ev.Kind = EventSignedOut
	case "TOKEN_REFRESHED":
		ev.Kind = EventTokenRefreshed
	case "USER_UPDATED":
		ev.Kind = EventUserUpdated
	}
	return ev
}
