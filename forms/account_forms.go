package forms

import (
	"github.com/kendall-kelly/servicepro-api/models"
)

// CustomerInput is the direct "add customer" form
type CustomerInput struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Validate trims the input in place and checks it
func (in *CustomerInput) Validate() error {
	in.Name = trimmed(in.Name)
	in.Email = trimmed(in.Email)
	in.Phone = trimmed(in.Phone)
	in.Address = trimmed(in.Address)
	return run(in, "Invalid customer data.")
}

// StaffInput is the admin "add staff" form
type StaffInput struct {
	Name     string      `json:"name" validate:"required"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=6"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=USER ADMIN"`
}

// Validate normalizes the input and checks it. A missing role means USER.
func (in *StaffInput) Validate() error {
	in.Name = trimmed(in.Name)
	in.Email = trimmed(in.Email)
	if err := run(in, "Invalid staff data."); err != nil {
		return err
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	return nil
}

// SignupInput is the self-service registration form
type SignupInput struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (in *SignupInput) Validate() error {
	in.Name = trimmed(in.Name)
	in.Email = trimmed(in.Email)
	return run(in, "Invalid signup data.")
}

// LoginInput holds credentials
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (in *LoginInput) Validate() error {
	in.Email = trimmed(in.Email)
	return run(in, "Invalid credentials.")
}

// ProfileInput updates the acting user's own profile. Nil fields are left alone.
type ProfileInput struct {
	Name  *string `json:"name" validate:"omitempty,min=2"`
	Image *string `json:"image" validate:"omitempty"`
}

func (in *ProfileInput) Validate() error {
	if in.Name != nil {
		name := trimmed(*in.Name)
		in.Name = &name
	}
	verr := &ValidationError{Stage: StageForm, Message: "Invalid profile data."}
	if err := checkStruct(in, verr); err != nil {
		return err
	}
	// empty image clears the avatar
	if in.Image != nil && *in.Image != "" {
		if err := structValidator().Var(*in.Image, "url"); err != nil {
			verr.Add("image", "Must be a valid URL.")
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// RoleInput changes another user's role
type RoleInput struct {
	Role models.Role `json:"role" validate:"required,oneof=USER ADMIN"`
}

func (in *RoleInput) Validate() error {
	return run(in, "Invalid role.")
}

// PaymentInput records how a job was paid
type PaymentInput struct {
	Method string `json:"paymentMethod" validate:"required"`
}

func (in *PaymentInput) Validate() error {
	in.Method = trimmed(in.Method)
	return run(in, "Invalid payment data.")
}

// run validates v as a single-stage form
func run(v interface{}, message string) error {
	verr := &ValidationError{Stage: StageForm, Message: message}
	if err := checkStruct(v, verr); err != nil {
		return err
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
