// Package actor carries the verified identity of the caller on a
// context.Context. Every mutating entry point of the pipeline requires
// an actor; operator-only transitions additionally require an admin or
// master role. Verification itself (sessions, tokens) happens outside
// this module; the actor is trusted input here.
package actor

import (
	"context"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/id"
)

// Role is the capability level of an actor.
type Role string

const (
	// RoleUser is an end user acting on their own applications.
	RoleUser Role = "user"
	// RoleAdmin is staff applying on behalf of users.
	RoleAdmin Role = "admin"
	// RoleMaster is staff with full override capability.
	RoleMaster Role = "master"
)

// Actor is a verified caller identity.
type Actor struct {
	ID   id.UserID
	Role Role
}

// Operator reports whether the actor may perform operator-only
// transitions.
func (a Actor) Operator() bool {
	return a.Role == RoleAdmin || a.Role == RoleMaster
}

type ctxKey struct{}

// With attaches an actor to the context.
func With(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// From extracts the actor from the context.
func From(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}

// Require extracts the actor or fails with stitch.ErrForbidden.
func Require(ctx context.Context) (Actor, error) {
	a, ok := From(ctx)
	if !ok {
		return Actor{}, stitch.ErrForbidden
	}
	return a, nil
}

// RequireOperator extracts the actor and verifies operator capability.
func RequireOperator(ctx context.Context) (Actor, error) {
	a, err := Require(ctx)
	if err != nil {
		return Actor{}, err
	}
	if !a.Operator() {
		return Actor{}, stitch.ErrForbidden
	}
	return a, nil
}
