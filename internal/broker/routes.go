package broker

import "fmt"

// routeFamily identifies one of the two historical broker route conventions.
type routeFamily int

const (
	familyUnknown routeFamily = iota
	familyBroker              // /broker/session/{id}/...
	familyLegacy              // /instances/{id}/...
)

func (f routeFamily) String() string {
	switch f {
	case familyBroker:
		return "broker"
	case familyLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// sessionPath builds the path for a session-scoped operation in the given
// family. op is the trailing segment ("connect", "status", "qr", ...); an
// empty op addresses the session resource itself.
func sessionPath(f routeFamily, sessionID, op string) string {
	var base string
	switch f {
	case familyLegacy:
		base = fmt.Sprintf("/instances/%s", sessionID)
	default:
		base = fmt.Sprintf("/broker/session/%s", sessionID)
	}
	if op == "" {
		return base
	}
	return base + "/" + op
}

// routeAttempt is one (family, request) pair in the fallback order. Session
// lifecycle calls are modeled as a finite list of attempts tried in
// preference order, short-circuiting on first success or non-recoverable
// error.
type routeAttempt struct {
	family routeFamily
	method string
	path   string
	body   any
}

// attemptOrder returns both families with the preferred one first. An unknown
// preference tries the broker-scoped family first, matching the broker's
// current steady state.
func attemptOrder(pref routeFamily) [2]routeFamily {
	if pref == familyLegacy {
		return [2]routeFamily{familyLegacy, familyBroker}
	}
	return [2]routeFamily{familyBroker, familyLegacy}
}

// shouldFallback reports whether err from one family justifies trying the
// other. Only a 404 whose broker code is not itself a "not connected" code
// counts as a routing miss.
func shouldFallback(err error) bool {
	be, ok := AsError(err)
	if !ok {
		return false
	}
	return be.HTTPStatus == 404 && !isNotConnectedCode(be.BrokerCode)
}
