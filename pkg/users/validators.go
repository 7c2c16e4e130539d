package users

type CreateUserPayload struct {
	Username             string  `json:"username" mod:"trim" validate:"required,min=3,max=50"`
	Email                *string `json:"email" mod:"trim" validate:"omitempty,email"`
	Password             string  `json:"password" validate:"required,min=8"`
	Role                 string  `json:"role" validate:"required,oneof=admin member"`
	RequirePasswordReset bool    `json:"require_password_reset"`
}

type UpdateUserPayload struct {
	Username *string `json:"username" mod:"trim" validate:"omitempty,min=3,max=50"`
	Email    *string `json:"email" mod:"trim" validate:"omitempty,email"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin member"`
	IsActive *bool   `json:"is_active"`
}

type ResetPasswordPayload struct {
	// CurrentPassword is required when users change their own password,
	// unless they were forced to reset it.
	CurrentPassword      *string `json:"current_password"`
	NewPassword          string  `json:"new_password" validate:"required,min=8"`
	RequirePasswordReset bool    `json:"require_password_reset"`
}

type ListUsersQuery struct {
	Limit  int `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset int `query:"offset" json:"offset,omitempty" validate:"min=0"`
}
