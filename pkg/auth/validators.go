package auth

// RegisterPayload represents the registration request body.
type RegisterPayload struct {
	Username        string `json:"username" mod:"trim" validate:"required,min=3,max=50"`
	Email           string `json:"email" mod:"trim,lcase" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	DisplayName     string `json:"display_name" mod:"trim" validate:"max=100"`
	InvitationToken string `json:"invitation_token"`
}

// LoginPayload represents the login request body. Either the username or the
// email identifies the account.
type LoginPayload struct {
	Username string `json:"username" mod:"trim" validate:"required_without=Email"`
	Email    string `json:"email" mod:"trim,lcase" validate:"required_without=Username,omitempty,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateAuthSettingsPayload switches the registration flow.
type UpdateAuthSettingsPayload struct {
	AuthFlow string `json:"auth_flow" validate:"required,oneof=signup invitation"`
}

// SessionResponse is returned from register and login.
type SessionResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse is the public view of a user, including resolved permissions.
type UserResponse struct {
	ID          int      `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// AuthSettingsResponse is the public view of the auth settings.
type AuthSettingsResponse struct {
	AuthFlow string `json:"auth_flow"`
}
