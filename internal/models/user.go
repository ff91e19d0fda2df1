package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Platform roles. ADMIN holds every capability.
const (
	UserRoleAdmin  = "ADMIN"
	UserRoleUser   = "USER"
	UserRoleViewer = "VIEWER"
)

const (
	UserStatusActive   = "ACTIVE"
	UserStatusInactive = "INACTIVE"
)

const (
	CapabilityQueryData     = "QUERY_DATA"
	CapabilityExportData    = "EXPORT_DATA"
	CapabilityManageUsers   = "MANAGE_USERS"
	CapabilityViewHistory   = "VIEW_HISTORY"
	CapabilityAdvancedQuery = "ADVANCED_QUERY"
)

var DefaultCapabilities = map[string][]string{
	UserRoleAdmin:  {CapabilityQueryData, CapabilityExportData, CapabilityManageUsers, CapabilityViewHistory, CapabilityAdvancedQuery},
	UserRoleUser:   {CapabilityQueryData, CapabilityExportData, CapabilityViewHistory},
	UserRoleViewer: {CapabilityQueryData, CapabilityViewHistory},
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	Capabilities []string  `json:"capabilities"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) Has(capability string) bool {
	if u.Status != UserStatusActive {
		return false
	}
	if u.Role == UserRoleAdmin {
		return true
	}
	for _, c := range u.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

func ParseCapabilities(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
