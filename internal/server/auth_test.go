package server

import "testing"

func TestAdminIdentity_Authenticate(t *testing.T) {
	admin := NewAdminIdentity("admin", "hunter2")

	tests := []struct {
		name     string
		username string
		password string
		wantOK   bool
	}{
		{"match", "admin", "hunter2", true},
		{"wrong password", "admin", "hunter3", false},
		{"wrong user", "root", "hunter2", false},
		{"case differs", "Admin", "hunter2", false},
		{"empty password", "admin", "", false},
		{"empty username", "", "hunter2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := admin.Authenticate(tt.username, tt.password)
			if ok != tt.wantOK {
				t.Fatalf("Authenticate(%q, %q) ok = %v, want %v", tt.username, tt.password, ok, tt.wantOK)
			}
			if ok && p.Username != "admin" {
				t.Fatalf("unexpected principal: %+v", p)
			}
		})
	}
}

func TestAdminIdentity_EmptyConfigRejectsAll(t *testing.T) {
	admin := NewAdminIdentity("", "")
	if _, ok := admin.Authenticate("", ""); ok {
		t.Fatal("empty credentials must not authenticate")
	}
}
