package models

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleReceptionist Role = "receptionist"
	RoleHousekeeper  Role = "housekeeper"
	RoleGuest        Role = "guest"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleReceptionist, RoleHousekeeper, RoleGuest:
		return true
	}
	return false
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uint
	Role   Role
	Email  string
}

// Staff may act on any booking.
func (a Actor) Staff() bool {
	return a.Role == RoleAdmin || a.Role == RoleReceptionist
}

func (a Actor) Admin() bool { return a.Role == RoleAdmin }

// CanManage reports whether a may mutate a record owned by ownerID.
func (a Actor) CanManage(ownerID uint) bool {
	return a.Staff() || (a.UserID != 0 && a.UserID == ownerID)
}

type User struct {
	gorm.Model
	Email     string `json:"email" gorm:"uniqueIndex;not null"`
	Password  string `json:"-"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Role      Role   `json:"role" gorm:"size:16;not null;default:guest"`
}

// ErrNoPassword is returned when a user is created without a password.
var ErrNoPassword = errors.New("user has no password")

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.Password == "" {
		return ErrNoPassword
	}
	u.Password, err = HashPassword(u.Password)
	return
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword compares a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

type Guest struct {
	gorm.Model
	FirstName        string `json:"firstName" validate:"required"`
	LastName         string `json:"lastName" validate:"required"`
	Email            string `json:"email" gorm:"index" validate:"omitempty,email"`
	Phone            string `json:"phone" validate:"required"`
	Address          string `json:"address"`
	EmergencyContact string `json:"emergencyContact"`
	UserID           *uint  `json:"user" gorm:"index"`
}
