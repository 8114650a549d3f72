package claims

import (
	"context"
	"errors"
	"testing"
)

func TestGet(t *testing.T) {
	if _, err := Get(context.Background()); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing without claims, got %v", err)
	}
	if _, ok := UserID(Set(context.Background(), Claims{Role: RoleUser})); ok {
		t.Fatal("claims without a user id reported as signed in")
	}

	ctx := Set(context.Background(), Claims{UserID: "u-1", Role: RoleUser})
	c, err := Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.UserID != "u-1" || c.Admin() {
		t.Fatalf("unexpected claims %+v", c)
	}
}

func TestAccess(t *testing.T) {
	user := Set(context.Background(), Claims{UserID: "u-1", Role: RoleUser})
	admin := Set(context.Background(), Claims{UserID: "a-1", Role: RoleAdmin})
	guest := context.Background()

	tests := []struct {
		name   string
		ctx    context.Context
		owner  string
		isUser bool
		access bool
	}{
		{"owner", user, "u-1", true, true},
		{"other user", user, "u-2", false, false},
		{"admin", admin, "u-1", false, true},
		{"guest", guest, "u-1", false, false},
		{"guest empty owner", guest, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUser(tt.ctx, tt.owner); got != tt.isUser {
				t.Errorf("IsUser: expected %v, got %v", tt.isUser, got)
			}
			if got := CanAccess(tt.ctx, tt.owner); got != tt.access {
				t.Errorf("CanAccess: expected %v, got %v", tt.access, got)
			}
		})
	}
	if !IsAdmin(admin) || IsAdmin(user) || IsAdmin(guest) {
		t.Fatal("unexpected admin detection")
	}
}
