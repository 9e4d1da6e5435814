package auth

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	minPasswordLength = 6
	// bcrypt only reads the first 72 bytes and x/crypto rejects longer input
	maxPasswordBytes = 72
	minNameLength    = 2
	maxNameLength    = 50
)

var (
	hasLower = regexp.MustCompile(`[a-z]`)
	hasUpper = regexp.MustCompile(`[A-Z]`)
	hasDigit = regexp.MustCompile(`[0-9]`)
)

var emailRules = []validation.Rule{
	validation.Required.Error("email is required"),
	validation.Length(3, 254),
	is.Email.Error("must be a valid email address"),
}

var passwordRules = []validation.Rule{
	validation.Required.Error("password is required"),
	validation.Length(minPasswordLength, 0).
		Error("password must be at least 6 characters long"),
	passwordSizeRule,
	validation.Match(hasLower).Error("password must contain a lowercase letter"),
	validation.Match(hasUpper).Error("password must contain an uppercase letter"),
	validation.Match(hasDigit).Error("password must contain a number"),
}

var passwordSizeRule = validation.By(func(value interface{}) error {
	password, _ := value.(string)
	if len(password) > maxPasswordBytes {
		return errors.New(errPasswordTooLong)
	}
	return nil
})

var nameRule = validation.By(func(value interface{}) error {
	var name string
	switch v := value.(type) {
	case string:
		name = v
	case *string:
		if v == nil {
			return nil
		}
		name = *v
	default:
		return errors.New("must be a string")
	}

	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < minNameLength || n > maxNameLength {
		return errors.New("name must be between 2 and 50 characters")
	}
	return nil
})

// RegisterInput is the registration payload
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r RegisterInput) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required.Error("name is required"), nameRule),
		validation.Field(&r.Email, emailRules...),
		validation.Field(&r.Password, passwordRules...),
	))
}

// LoginInput is the password login payload
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginInput) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, emailRules...),
		validation.Field(&r.Password, validation.Required.Error("password is required")),
	))
}

// EmailInput carries a single email address
type EmailInput struct {
	Email string `json:"email"`
}

func (r EmailInput) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, emailRules...),
	))
}

// TokenInput carries a raw secret token
type TokenInput struct {
	Token string `json:"token"`
}

func (r TokenInput) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required.Error("token is required")),
	))
}

// ResetPasswordInput is the password reset payload
type ResetPasswordInput struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r ResetPasswordInput) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required.Error("token is required")),
		validation.Field(&r.Password, passwordRules...),
	))
}

// ChangePasswordInput is the change password payload
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (r ChangePasswordInput) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required.Error("current password is required")),
		validation.Field(&r.NewPassword, passwordRules...),
	))
}

// ProfileInput is the profile update payload
type ProfileInput struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

func (r ProfileInput) Validate() error {
	if r.Name == nil && r.AvatarURL == nil {
		return NewValidationError(map[string]string{"input": "nothing to update"})
	}
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, nameRule),
		validation.Field(&r.AvatarURL, validation.Length(0, 2048), is.URL),
	))
}

// Update converts the payload into a store update
func (r ProfileInput) Update() ProfileUpdate {
	update := ProfileUpdate{AvatarURL: r.AvatarURL}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		update.Name = &name
	}
	return update
}

// StatusInput is the admin status update payload
type StatusInput struct {
	IsActive *bool   `json:"is_active"`
	Role     *string `json:"role"`
}

func (r StatusInput) Validate() error {
	if r.IsActive == nil && r.Role == nil {
		return NewValidationError(map[string]string{"input": "nothing to update"})
	}
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.In(RoleUser, RoleAdmin).Error("role must be user or admin")),
	))
}

// Update converts the payload into a store update
func (r StatusInput) Update() StatusUpdate {
	update := StatusUpdate{Active: r.IsActive}
	if r.Role != nil {
		if role, ok := ParseRole(*r.Role); ok {
			update.Role = &role
		}
	}
	return update
}
