package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestPrincipal_Scope(t *testing.T) {
	county := uuid.New()
	constituency := uuid.New()

	tests := []struct {
		name string
		p    *Principal
		want ScopeLevel
	}{
		{"nil principal", nil, ScopeNone},
		{"national", &Principal{IsNational: true, CountyID: &county}, ScopeNational},
		{"admin", &Principal{IsAdmin: true}, ScopeNational},
		{"county", &Principal{CountyID: &county}, ScopeCounty},
		{"constituency", &Principal{ConstituencyID: &constituency}, ScopeConstituency},
		{"county wins over constituency", &Principal{CountyID: &county, ConstituencyID: &constituency}, ScopeCounty},
		{"no assignment", &Principal{UserID: "u"}, ScopeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Scope().Level; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	if UserIDFromContext(context.Background()) != "" {
		t.Error("expected empty user id without principal")
	}
	if ScopeFromContext(context.Background()).Level != ScopeNone {
		t.Error("expected no scope without principal")
	}

	id := uuid.New()
	ctx := WithPrincipal(context.Background(), &Principal{UserID: id.String()})
	if UserIDFromContext(ctx) != id.String() {
		t.Error("expected user id from context")
	}
	if got := PrincipalFromContext(ctx).UserUUID(); got == nil || *got != id {
		t.Errorf("expected uuid %s, got %v", id, got)
	}
	if (&Principal{UserID: DevUserID}).UserUUID() != nil {
		t.Error("expected nil uuid for non-uuid user id")
	}
}
