package auth

import "testing"

func TestCapabilityTableIsTotal(t *testing.T) {
	for _, role := range AllRoles {
		declared := make(map[Capability]struct{})
		for _, c := range roleCapabilities[role] {
			declared[c] = struct{}{}
		}
		for _, c := range AllCapabilities {
			_, want := declared[c]
			if got := HasCapability(role, c); got != want {
				t.Fatalf("HasCapability(%s, %s)=%v, table says %v", role, c, got, want)
			}
		}
	}
}

func TestUnknownRoleHoldsNothing(t *testing.T) {
	for _, c := range AllCapabilities {
		if HasCapability(Role("treasurer"), c) {
			t.Fatalf("unknown role gained capability %s", c)
		}
	}
	if caps := CapabilitiesFor(Role("treasurer")); caps != nil {
		t.Fatalf("expected nil capability set, got %v", caps)
	}
}

func TestAdminHoldsEveryCapability(t *testing.T) {
	for _, c := range AllCapabilities {
		if !HasCapability(RoleAdmin, c) {
			t.Fatalf("admin missing %s", c)
		}
	}
}

func TestCapabilitiesForReturnsCopy(t *testing.T) {
	caps := CapabilitiesFor(RoleMember)
	if len(caps) == 0 {
		t.Fatal("member should hold at least events:view")
	}
	caps[0] = Capability("mutated")
	if !HasCapability(RoleMember, CapEventsView) {
		t.Fatal("mutating the returned slice altered the registry")
	}
}

func TestWriteCapabilityClassification(t *testing.T) {
	reads := map[Capability]bool{
		CapEventsView: true,
		CapUsersView:  true,
		CapAuditView:  true,
	}
	for _, c := range AllCapabilities {
		want := !reads[c]
		if got := IsWriteCapability(c); got != want {
			t.Fatalf("IsWriteCapability(%s)=%v, want %v", c, got, want)
		}
	}
	// Unknown capabilities fail closed as writes.
	if !IsWriteCapability(Capability("made:up")) {
		t.Fatal("unknown capability must classify as a write")
	}
}
