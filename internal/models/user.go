package models

import (
	"strings"
	"time"
)

// Role gates what a user can see and do.
type Role string

const (
	RoleAdministrador Role = "Administrador"
	RoleSupervisor    Role = "Supervisor"
	RoleTecnico       Role = "Técnico"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrador, RoleSupervisor, RoleTecnico:
		return true
	}
	return false
}

// SeesEverything is true for roles that are not scoped to their own reports.
func (r Role) SeesEverything() bool {
	return r == RoleAdministrador || r == RoleSupervisor
}

// User is an account of the field force or the administration.
type User struct {
	ID                  string    `json:"id" dynamodbav:"id" bson:"_id"`
	Username            string    `json:"username" dynamodbav:"username" bson:"username"`
	Email               string    `json:"email" dynamodbav:"email" bson:"email"`
	Name                string    `json:"name" dynamodbav:"name" bson:"name"`
	Role                Role      `json:"role" dynamodbav:"role" bson:"role"`
	Phone               string    `json:"phone,omitempty" dynamodbav:"phone,omitempty" bson:"phone,omitempty"`
	Cedula              string    `json:"cedula,omitempty" dynamodbav:"cedula,omitempty" bson:"cedula,omitempty"`
	Department          string    `json:"department,omitempty" dynamodbav:"department,omitempty" bson:"department,omitempty"`
	IsActive            bool      `json:"isActive" dynamodbav:"isActive" bson:"isActive"`
	IsVerified          bool      `json:"isVerified" dynamodbav:"isVerified" bson:"isVerified"`
	CurrentLocation     *Location `json:"currentLocation,omitempty" dynamodbav:"currentLocation,omitempty" bson:"currentLocation,omitempty"`
	ReportsCount        int       `json:"reportsCount" dynamodbav:"reportsCount" bson:"reportsCount"`
	PendingReportsCount int       `json:"pendingReportsCount" dynamodbav:"pendingReportsCount" bson:"pendingReportsCount"`
	Notes               []Note    `json:"notes,omitempty" dynamodbav:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt           time.Time `json:"createdAt" dynamodbav:"createdAt" bson:"createdAt"`
	LastSeen            time.Time `json:"lastSeen,omitempty" dynamodbav:"lastSeen,omitempty" bson:"lastSeen,omitempty"`
}

// Owns reports whether the report was authored by u. Reports written before
// usuarioId was recorded are matched on the creator's name.
func (u *User) Owns(r *Report) bool {
	if r.UsuarioID != "" {
		return strings.EqualFold(r.UsuarioID, u.Username)
	}
	return r.CreadoPor == u.Name || strings.EqualFold(r.CreadoPor, u.Username)
}

// Location is the last known position reported for a user.
type Location struct {
	Province     string    `json:"province" dynamodbav:"province" bson:"province"`
	Municipality string    `json:"municipality" dynamodbav:"municipality" bson:"municipality"`
	Lat          float64   `json:"lat" dynamodbav:"lat" bson:"lat"`
	Lon          float64   `json:"lon" dynamodbav:"lon" bson:"lon"`
	LastUpdated  time.Time `json:"lastUpdated" dynamodbav:"lastUpdated" bson:"lastUpdated"`
}

// NoteType classifies an admin audit entry.
type NoteType string

const (
	NoteObservacion  NoteType = "observacion"
	NoteAmonestacion NoteType = "amonestacion"
	NotePendiente    NoteType = "pendiente"
)

// Valid reports whether t is a known note type.
func (t NoteType) Valid() bool {
	switch t {
	case NoteObservacion, NoteAmonestacion, NotePendiente:
		return true
	}
	return false
}

// Note is an audit entry an administrator attaches to a user.
type Note struct {
	ID        string    `json:"id" dynamodbav:"id" bson:"id"`
	Type      NoteType  `json:"type" dynamodbav:"type" bson:"type"`
	Text      string    `json:"text" dynamodbav:"text" bson:"text"`
	Author    string    `json:"author" dynamodbav:"author" bson:"author"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp" bson:"timestamp"`
}

// Credentials is the login request.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUserRequest carries the data for a new account.
type CreateUserRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       Role   `json:"role,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Cedula     string `json:"cedula,omitempty"`
	Department string `json:"department,omitempty"`
}

// UserPatch is an admin edit of a user profile. Nil fields are left untouched.
type UserPatch struct {
	Email      *string `json:"email,omitempty"`
	Name       *string `json:"name,omitempty"`
	Role       *Role   `json:"role,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Cedula     *string `json:"cedula,omitempty"`
	Department *string `json:"department,omitempty"`
	IsActive   *bool   `json:"isActive,omitempty"`
}

// Session is an authenticated login.
type Session struct {
	Token     string    `json:"token"`
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Session Session `json:"session"`
	User    *User   `json:"user"`
}

// WelcomeMessage is handed to the notification collaborator after an account is created.
type WelcomeMessage struct {
	To       string `json:"to"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}
