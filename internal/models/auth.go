package models

import "github.com/golang-jwt/jwt/v5"

// UserRole identifies the acting user's role. The engine trusts the role
// supplied by the identity collaborator; authorization happens at the edge.
type UserRole string

const (
	RoleStudent   UserRole = "student"
	RoleProfessor UserRole = "professor"
	RoleRegistrar UserRole = "registrar"
	RoleDean      UserRole = "dean"
	RoleAdmission UserRole = "admission"
	RoleAdmin     UserRole = "admin"
)

// JWTClaims carries the authenticated actor through request handling.
type JWTClaims struct {
	UserID string   `json:"uid"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Pagination describes list response metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
