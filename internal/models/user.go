// internal/models/user.go
package models

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

const (
	RightGetUsers    = "getUsers"
	RightManageUsers = "manageUsers"
)

var roleRights = map[Role][]string{
	RoleUser:  {},
	RoleAdmin: {RightGetUsers, RightManageUsers},
}

func (r Role) HasRight(right string) bool {
	for _, granted := range roleRights[r] {
		if granted == right {
			return true
		}
	}
	return false
}

type User struct {
	ID              int64     `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	Name            *string   `json:"name,omitempty" db:"name"`
	Password        string    `json:"-" db:"password"`
	Role            Role      `json:"role" db:"role"`
	IsEmailVerified bool      `json:"isEmailVerified" db:"is_email_verified"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

type CreateUserInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Role     Role   `json:"role,omitempty"`
}

type UpdateUserInput struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Name     *string `json:"name,omitempty"`
	Role     *Role   `json:"role,omitempty"`
}

type UserFilter struct {
	Name string
	Role Role
}

type QueryOptions struct {
	SortBy string
	Limit  int
	Page   int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize applies the default page and clamps the limit to
// [1, MaxPageSize], defaulting to DefaultPageSize.
func (o QueryOptions) Normalize() QueryOptions {
	switch {
	case o.Limit <= 0:
		o.Limit = DefaultPageSize
	case o.Limit > MaxPageSize:
		o.Limit = MaxPageSize
	}
	if o.Page <= 0 {
		o.Page = 1
	}
	return o
}

type PaginatedResponse[T any] struct {
	Results      []T `json:"results"`
	Page         int `json:"page"`
	Limit        int `json:"limit"`
	TotalPages   int `json:"totalPages"`
	TotalResults int `json:"totalResults"`
}

func NewPage[T any](results []T, opts QueryOptions, total int) PaginatedResponse[T] {
	if results == nil {
		results = []T{}
	}
	pages := 0
	if opts.Limit > 0 {
		pages = (total + opts.Limit - 1) / opts.Limit
	}
	return PaginatedResponse[T]{
		Results:      results,
		Page:         opts.Page,
		Limit:        opts.Limit,
		TotalPages:   pages,
		TotalResults: total,
	}
}
