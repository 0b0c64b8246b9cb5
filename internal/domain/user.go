package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        int         `json:"id"`
	Email     string      `json:"email"`
	Password  string      `json:"-"` // bcrypt hash, never serialised
	FullName  string      `json:"full_name"`
	Address   string      `json:"address"`
	PinCode   string      `json:"pin_code"`
	Phone     null.String `json:"phone"`
	Role      string      `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type RegisterUserDTO struct {
	Email    string `json:"email" binding:"required,email,max=120"`
	Password string `json:"password" binding:"required,min=6,max=100"`
	FullName string `json:"full_name" binding:"required,max=120"`
	Address  string `json:"address" binding:"required,max=255"`
	PinCode  string `json:"pin_code" binding:"required,numeric,len=6"`
	Phone    string `json:"phone,omitempty" binding:"omitempty,max=20"`
}

type LoginUserDTO struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileDTO struct {
	FullName string `json:"full_name" binding:"required,max=120"`
	Address  string `json:"address" binding:"required,max=255"`
	PinCode  string `json:"pin_code" binding:"required,numeric,len=6"`
	Phone    string `json:"phone,omitempty" binding:"omitempty,max=20"`
}

type AuthResponseDTO struct {
	Token  string `json:"token"`
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// UserSummary is the admin view of a registered user.
type UserSummary struct {
	User
	HasOpenReservation bool `json:"has_open_reservation"`
	ReservationCount   int  `json:"reservation_count"`
}
