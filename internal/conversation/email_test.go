package conversation

import "testing"

func TestNormalizeEmail(t *testing.T) {
	orig := domainDeliverable
	domainDeliverable = func(string) bool { return true }
	defer func() { domainDeliverable = orig }()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"user@example.com", "user@example.com", true},
		{"  User@Example.COM ", "user@example.com", true},
		{"first.last+tag@sub.example.co.in", "first.last+tag@sub.example.co.in", true},
		{"not-an-email", "", false},
		{"my email is user@example.com", "", false},
		{"user@example.com is mine", "", false},
		{"missing@domain", "", false},
		{"two@@example.com", "", false},
		{"a@b@example.com", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeEmail(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("NormalizeEmail(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeEmailUndeliverableDomain(t *testing.T) {
	orig := domainDeliverable
	domainDeliverable = func(string) bool { return false }
	defer func() { domainDeliverable = orig }()

	if got, ok := NormalizeEmail("user@no-such-domain.example"); ok {
		t.Fatalf("expected rejection, got %q", got)
	}
}
