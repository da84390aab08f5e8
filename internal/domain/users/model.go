package users

import (
	"time"

	"github.com/google/uuid"
)

// User is an MFL account. Users are assigned to at most one county or one
// constituency, which decides what they can see.
type User struct {
	ID             uuid.UUID   `json:"id"`
	Email          string      `json:"email"`
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	OtherNames     string      `json:"other_names"`
	Username       *string     `json:"username"`
	EmployeeNumber *string     `json:"employee_number"`
	IsNational     bool        `json:"is_national"`
	IsActive       bool        `json:"is_active"`
	IsStaff        bool        `json:"is_staff"`
	IsSuperuser    bool        `json:"is_superuser"`
	Groups         []uuid.UUID `json:"groups"`
	CountyID       *uuid.UUID  `json:"county"`
	ConstituencyID *uuid.UUID  `json:"constituency"`
	DateJoined     time.Time   `json:"date_joined"`
	LastLogin      *time.Time  `json:"last_login"`
	PasswordHash   string      `json:"-"`

	// constituencyCountyID is the county of ConstituencyID, used for scoping.
	constituencyCountyID *uuid.UUID
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type CreateUserRequest struct {
	User
	Password string `json:"password"`
}

type Group struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	IsNational      bool      `json:"is_national"`
	IsRegulator     bool      `json:"is_regulator"`
	IsAdministrator bool      `json:"is_administrator"`
	Permissions     []string  `json:"permissions"`
	Created         time.Time `json:"created"`
}

type Permission struct {
	ID       uuid.UUID `json:"id"`
	Codename string    `json:"codename"`
	Name     string    `json:"name"`
}

type PasswordChange struct {
	OldPassword  string `json:"old_password" form:"old_password"`
	NewPassword1 string `json:"new_password1" form:"new_password1"`
	NewPassword2 string `json:"new_password2" form:"new_password2"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// OAuthError is the RFC 6749 error body.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuthError) Error() string {
	return e.Code + ": " + e.Description
}
