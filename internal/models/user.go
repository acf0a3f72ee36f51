package models

type UserRole string
type Role = UserRole

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleProctor UserRole = "proctor"
	RoleAdmin   UserRole = "admin"
)

// User is a read-only projection of an identity managed by Casdoor.
type User struct {
	ID           string   `json:"id"`
	FullName     string   `json:"full_name"`
	Email        string   `json:"email"`
	Organization string   `json:"organization"`
	Role         UserRole `json:"role"`

	AvatarURL *string `json:"avatar_url,omitempty"`
}

// CanReviewSubmissions reports whether the user may view or grade other users' submissions.
func (u *User) CanReviewSubmissions() bool {
	if u == nil {
		return false
	}
	return u.Role == RoleAdmin || u.Role == RoleTeacher
}
