package auth

type LoginPayload struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8"`
}

type SetupPayload struct {
	Username string  `json:"username" mod:"trim" validate:"required,min=3,max=50"`
	Email    *string `json:"email" mod:"trim" validate:"omitempty,email"`
	Password string  `json:"password" validate:"required,min=8"`
}

type StatusResponse struct {
	NeedsSetup bool `json:"needs_setup"`
}

type MeResponse struct {
	ID                 int      `json:"id"`
	Username           string   `json:"username"`
	Email              *string  `json:"email,omitempty"`
	RoleID             int      `json:"role_id"`
	RoleName           string   `json:"role_name"`
	Permissions        []string `json:"permissions"`
	MustChangePassword bool     `json:"must_change_password"`
}

// LoginResponse carries the token as well as the cookie so non-browser
// clients can send it back as a Bearer header.
type LoginResponse struct {
	MeResponse
	Token string `json:"token"`
}
