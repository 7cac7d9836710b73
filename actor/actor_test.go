package actor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/actor"
	"github.com/stitchhq/stitch/id"
)

func TestRequire(t *testing.T) {
	t.Parallel()

	_, err := actor.Require(context.Background())
	if !errors.Is(err, stitch.ErrForbidden) {
		t.Fatalf("expected ErrForbidden without actor, got %v", err)
	}

	a := actor.Actor{ID: id.NewUserID(), Role: actor.RoleUser}
	got, err := actor.Require(actor.With(context.Background(), a))
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("actor ID mismatch: %s != %s", got.ID, a.ID)
	}
}

func TestRequireOperator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role    actor.Role
		allowed bool
	}{
		{actor.RoleUser, false},
		{actor.RoleAdmin, true},
		{actor.RoleMaster, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			ctx := actor.With(context.Background(), actor.Actor{ID: id.NewUserID(), Role: tt.role})
			_, err := actor.RequireOperator(ctx)
			if tt.allowed && err != nil {
				t.Errorf("role %s should be allowed, got %v", tt.role, err)
			}
			if !tt.allowed && !errors.Is(err, stitch.ErrForbidden) {
				t.Errorf("role %s should be forbidden, got %v", tt.role, err)
			}
		})
	}
}
