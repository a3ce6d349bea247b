package oauth

import (
	"reflect"
	"testing"
	"time"
)

func TestCredentialValidFor(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	margin := 5 * time.Minute

	tests := []struct {
		name string
		cred *Credential
		want bool
	}{
		{"nil credential", nil, false},
		{"empty access token", &Credential{}, false},
		{
			"well before expiry",
			&Credential{AccessToken: "a", ExpiresAt: now.Add(time.Hour)},
			true,
		},
		{
			"inside the margin",
			&Credential{AccessToken: "a", ExpiresAt: now.Add(4 * time.Minute)},
			false,
		},
		{
			"already expired",
			&Credential{AccessToken: "a", ExpiresAt: now.Add(-time.Minute)},
			false,
		},
		{
			"zero expiry never expires",
			&Credential{AccessToken: "a"},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.ValidFor(margin, now); got != tt.want {
				t.Errorf("ValidFor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCredentialCanRefresh(t *testing.T) {
	var nilCred *Credential
	if nilCred.CanRefresh() {
		t.Error("nil credential reports CanRefresh")
	}
	if (&Credential{AccessToken: "a"}).CanRefresh() {
		t.Error("credential without refresh token reports CanRefresh")
	}
	if !(&Credential{AccessToken: "a", RefreshToken: "r"}).CanRefresh() {
		t.Error("credential with refresh token reports !CanRefresh")
	}
}

func TestCredentialScopes(t *testing.T) {
	cred := &Credential{Scope: "r:devices:* x:devices:* r:locations:*"}
	want := []string{"r:devices:*", "x:devices:*", "r:locations:*"}
	if got := cred.Scopes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Scopes = %v, want %v", got, want)
	}

	if got := (&Credential{}).Scopes(); got != nil {
		t.Errorf("Scopes of empty scope = %v, want nil", got)
	}
}

func TestStaticCredential(t *testing.T) {
	cred := staticCredential("pat-token")
	if cred.AccessToken != "pat-token" {
		t.Errorf("AccessToken = %q", cred.AccessToken)
	}
	if cred.CanRefresh() {
		t.Error("static credential must not be refreshable")
	}
	if !cred.ValidFor(time.Hour, time.Now()) {
		t.Error("static credential must never expire")
	}
}
