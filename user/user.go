package user

import "time"

// Role controls access to the admin surfaces
type Role string

// Defining user roles
const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User describes an account holder. The billing engines read users to
// snapshot email/name onto their own records; they never mutate them.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex"`
	FullName  string    `json:"fullName"`
	Company   string    `json:"company"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
