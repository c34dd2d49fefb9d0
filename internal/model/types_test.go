package model

import (
	"strings"
	"testing"
)

func TestNewInviteCode(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		code := NewInviteCode()

		if len(code) != InviteCodeLength {
			t.Fatalf("len(code) = %d, want %d", len(code), InviteCodeLength)
		}
		for _, ch := range code {
			if !strings.ContainsRune(inviteCodeChars, ch) {
				t.Fatalf("code %q contains invalid char %q", code, ch)
			}
		}
		seen[code] = true
	}

	// 100 draws from 36^6 should essentially never all collide.
	if len(seen) < 2 {
		t.Errorf("generated %d distinct codes, want > 1", len(seen))
	}
}

func TestAvatarFor(t *testing.T) {
	p := Principal{Address: "0xabc"}

	got := p.AvatarURL()
	want := "https://api.dicebear.com/9.x/pixel-art/svg?seed=0xabc"
	if got != want {
		t.Errorf("AvatarURL() = %q, want %q", got, want)
	}

	if AvatarFor("bot") == AvatarFor("0xabc") {
		t.Error("different seeds produced identical avatars")
	}
}
