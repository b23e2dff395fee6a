// Package roles implements the capability checks guarding the gateway's
// privileged operations. The model is a static address-to-capability map
// loaded from configuration; there is no on-line grant or revoke.
package roles

import (
	"cosmossdk.io/errors"
)

// Codespace for authorization errors.
const Codespace = "roles"

// ErrUnauthorized is returned for any capability the actor does not hold.
var ErrUnauthorized = errors.Register(Codespace, 1, "actor lacks required capability")

// Capability names one privileged operation class.
type Capability string

const (
	// Governance covers parameter changes: liquidity ratio, slippage bound,
	// rate-limit and breaker configuration, breaker reset, pause/unpause.
	Governance Capability = "governance"
	// EmergencyOperator covers manual price overrides and emergency mode.
	EmergencyOperator Capability = "emergency_operator"
	// Updater covers oracle source swaps and observation resync.
	Updater Capability = "updater"
)

// Authorizer answers whether an actor holds a capability.
type Authorizer interface {
	Require(actor string, cap Capability) error
}

// StaticAuthorizer is a fixed capability table.
type StaticAuthorizer struct {
	grants map[Capability]map[string]struct{}
}

// NewStaticAuthorizer builds the table from capability → actor lists.
func NewStaticAuthorizer(grants map[Capability][]string) *StaticAuthorizer {
	a := &StaticAuthorizer{grants: make(map[Capability]map[string]struct{})}
	for capName, actors := range grants {
		set := make(map[string]struct{}, len(actors))
		for _, actor := range actors {
			set[actor] = struct{}{}
		}
		a.grants[capName] = set
	}
	return a
}

// Require returns ErrUnauthorized unless actor holds cap.
func (a *StaticAuthorizer) Require(actor string, cap Capability) error {
	if set, ok := a.grants[cap]; ok {
		if _, ok := set[actor]; ok {
			return nil
		}
	}
	return ErrUnauthorized.Wrapf("actor %s lacks %s", actor, cap)
}

// AllowAll grants every capability to every actor. Test and single-operator
// deployments only.
type AllowAll struct{}

// Require always succeeds.
func (AllowAll) Require(string, Capability) error { return nil }
