package models

import (
	"strings"

	"gorm.io/gorm"
)

const (
	RoleBarista = "Barista"
	RoleAdmin   = "Admin"
)

// Employee represents a staff account that can sign in and place orders.
type Employee struct {
	gorm.Model
	Name         string `gorm:"not null" json:"name"`
	Role         string `gorm:"type:varchar(16);not null;default:Barista" json:"role"`
	Phone        string `gorm:"uniqueIndex;not null" json:"phone"`
	PasswordHash string `gorm:"not null" json:"-"`
	IsActive     bool   `gorm:"not null;default:true" json:"is_active"`
}

// ValidRole reports whether role is one of the known employee roles.
func ValidRole(role string) bool {
	switch role {
	case RoleBarista, RoleAdmin:
		return true
	default:
		return false
	}
}

// NormalizeRole maps case-insensitive input onto a known role, falling back to Barista.
func NormalizeRole(role string) string {
	trimmed := strings.TrimSpace(role)
	for _, known := range []string{RoleBarista, RoleAdmin} {
		if strings.EqualFold(trimmed, known) {
			return known
		}
	}
	return RoleBarista
}
