package auth

import "slices"

// Roles understood by the API.
const (
	RoleAdmin             = "admin"
	RoleUser              = "user"
	RoleSignatureImporter = "signature_importer"
	RoleSignatureManager  = "signature_manager"
	RoleArchiveTrigger    = "archive_trigger"
	RoleSubmissionView    = "submission_view"
)

// User is the authenticated caller.
type User struct {
	Username       string   `json:"username"`
	Classification string   `json:"classification"`
	Roles          []string `json:"roles"`
	// Access is the normalized classification used to filter searches.
	Access string `json:"-"`
}

// HasRole reports whether u holds one of roles. Admins hold every role, and
// an empty list accepts any authenticated user.
func (u *User) HasRole(roles ...string) bool {
	if len(roles) == 0 || slices.Contains(u.Roles, RoleAdmin) {
		return true
	}
	for _, r := range roles {
		if slices.Contains(u.Roles, r) {
			return true
		}
	}
	return false
}
