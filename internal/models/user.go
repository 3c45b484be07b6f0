package models

import (
	"time"

	"gorm.io/gorm"
)

type Role struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:50;unique;not null" json:"name"` // 'admin', 'manager', 'staff', 'customer'
	CreatedAt time.Time `json:"created_at"`
	Users     []User    `json:"-"`
}

const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// IsElevatedRole reports whether a role may read and mutate orders owned by
// other users.
func IsElevatedRole(role string) bool {
	return role == RoleAdmin || role == RoleManager
}

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"size:50;unique;not null" json:"username"`
	Email        string         `gorm:"size:100;unique;not null" json:"email"`
	PasswordHash string         `gorm:"size:255;not null" json:"-"`
	Name         string         `gorm:"size:100" json:"name"`
	Address      string         `gorm:"type:text" json:"address"`
	Phone        string         `gorm:"size:15" json:"phone"`
	RoleID       uint           `json:"role_id"`
	Role         Role           `gorm:"foreignKey:RoleID" json:"role"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

const (
	LoginStatusSuccess = "success"
	LoginStatusFailed  = "failed"
)

// LoginHistory is append-only: one row per authentication attempt. UserID is
// null when the submitted username does not match any account.
type LoginHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       *uint     `gorm:"index" json:"user_id"`
	User         *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	LoginTime    time.Time `gorm:"index" json:"login_time"`
	IPAddress    string    `gorm:"size:45" json:"ip_address"`
	DeviceInfo   string    `gorm:"size:255" json:"device_info"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	LocationName string    `gorm:"size:255" json:"location_name"`
	Status       string    `gorm:"size:20;not null" json:"status"`
}
