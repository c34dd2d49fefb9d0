package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testAuthority(t *testing.T) *TokenAuthority {
	t.Helper()
	a, err := NewTokenAuthority("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestIssueAndAssertRoundTrip(t *testing.T) {
	a := testAuthority(t)

	token, err := a.Issue("0xabc")
	if err != nil {
		t.Fatal(err)
	}

	addr, err := a.Assert(token)
	if err != nil {
		t.Fatalf("Assert = %v, want nil", err)
	}
	if addr != "0xabc" {
		t.Errorf("address = %q, want 0xabc", addr)
	}
}

func TestAssertRejectsTampering(t *testing.T) {
	a := testAuthority(t)
	token, _ := a.Issue("0xabc")

	body, sig, _ := strings.Cut(token, ".")

	tampered := []string{
		"",
		"not-a-token",
		body,                   // missing signature
		body + "." + sig + "x", // altered signature
		"eyJhZGRyIjoiMHhldmUifQ" + "." + sig, // altered payload
	}
	for _, tok := range tampered {
		if _, err := a.Assert(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Assert(%q) = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestAssertRejectsForeignSecret(t *testing.T) {
	a := testAuthority(t)
	other, err := NewTokenAuthority("other-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, _ := other.Issue("0xabc")
	if _, err := a.Assert(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Assert = %v, want ErrInvalidToken", err)
	}
}

func TestAssertRejectsExpired(t *testing.T) {
	a := testAuthority(t)

	issued := time.Now()
	a.now = func() time.Time { return issued }
	token, _ := a.Issue("0xabc")

	a.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := a.Assert(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Assert = %v, want ErrExpiredToken", err)
	}
}

func TestNewTokenAuthorityValidation(t *testing.T) {
	if _, err := NewTokenAuthority("", time.Hour); err == nil {
		t.Error("empty secret accepted")
	}
	if _, err := NewTokenAuthority("s", 0); err == nil {
		t.Error("zero ttl accepted")
	}
}

func TestIssueRequiresAddress(t *testing.T) {
	a := testAuthority(t)
	if _, err := a.Issue(""); err == nil {
		t.Error("empty address accepted")
	}
}
