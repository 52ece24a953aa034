package models

// UserRole represents the role stored on a user profile in the identity store
type UserRole string

const (
	RoleAdmin          UserRole = "admin"
	RoleProjectManager UserRole = "project_manager"
	RoleWorker         UserRole = "worker"
)

// UserProfile is the subset of the identity store's user_profiles row the service reads
type UserProfile struct {
	ID       string   `json:"id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name,omitempty"`
	Email    string   `json:"email,omitempty"`
}

// TableName returns the table name for the UserProfile model
func (UserProfile) TableName() string {
	return "user_profiles"
}

// Caller is the authenticated identity behind a request. Never persisted.
type Caller struct {
	ID   string   `json:"id"`
	Role UserRole `json:"role"`
}

// IsAdmin returns true if the caller has admin role
func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
