package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func setSecret(t *testing.T) {
	t.Helper()
	t.Setenv(secretEnvVariable, "unit-test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidateToken(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("member-42", RoleSecretary, "", 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	p := claims.Principal()
	if p.MemberID != "member-42" || p.Role != RoleSecretary {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if p.Impersonated() {
		t.Fatal("ordinary session reported as impersonated")
	}
}

func TestImpersonationClaimSurvivesRoundTrip(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("member-42", RoleMember, "admin-1", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	p := claims.Principal()
	if !p.Impersonated() || p.ImpersonatedBy != "admin-1" {
		t.Fatalf("impersonation claim lost: %+v", p)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	setSecret(t)

	for _, token := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestMissingSecretFailsClosed(t *testing.T) {
	t.Setenv(secretEnvVariable, "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("member-1", RoleMember, "", time.Minute); err == nil {
		t.Fatal("expected error without configured secret")
	}
	if _, err := ParseAndValidate("whatever"); err == nil {
		t.Fatal("expected error without configured secret")
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := PrincipalFromContext(ctx); ok {
		t.Fatal("empty context should not carry a principal")
	}
	want := Principal{MemberID: "member-7", Role: RolePresident}
	ctx = ContextWithPrincipal(ctx, want)
	got, ok := PrincipalFromContext(ctx)
	if !ok || got != want {
		t.Fatalf("round trip failed: %+v ok=%v", got, ok)
	}
}
