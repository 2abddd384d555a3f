package models

import "testing"

// TestUserCanEdit verifies that edit rights are scoped to the user's project.
func TestUserCanEdit(t *testing.T) {
	tests := []struct {
		name      string
		userProj  string
		projectID string
		want      bool
	}{
		{name: "same project", userProj: "blog-a", projectID: "blog-a", want: true},
		{name: "other project", userProj: "blog-a", projectID: "blog-b", want: false},
		{name: "empty target project", userProj: "", projectID: "", want: false},
		{name: "user without project", userProj: "", projectID: "blog-a", want: false},
		{name: "case sensitive", userProj: "Blog-A", projectID: "blog-a", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{ProjectID: tt.userProj}
			if got := u.CanEdit(tt.projectID); got != tt.want {
				t.Errorf("User{ProjectID: %q}.CanEdit(%q) = %v, want %v",
					tt.userProj, tt.projectID, got, tt.want)
			}
		})
	}
}

// TestUserNeeds2FASetup verifies 2FA setup detection based on TOTPEnabled.
func TestUserNeeds2FASetup(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"

	tests := []struct {
		name        string
		totpSecret  *string
		totpEnabled bool
		want        bool
	}{
		{name: "no secret and not enabled", totpSecret: nil, totpEnabled: false, want: true},
		{name: "secret set but not enabled", totpSecret: &secret, totpEnabled: false, want: true},
		{name: "secret set and enabled", totpSecret: &secret, totpEnabled: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{TOTPSecret: tt.totpSecret, TOTPEnabled: tt.totpEnabled}
			if got := u.Needs2FASetup(); got != tt.want {
				t.Errorf("Needs2FASetup() = %v, want %v", got, tt.want)
			}
		})
	}
}
