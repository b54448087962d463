package roles

type CreateRolePayload struct {
	Name        string   `json:"name" mod:"trim" validate:"required,max=50"`
	Description string   `json:"description" validate:"max=300"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
}

type UpdateRolePayload struct {
	Description *string   `json:"description" validate:"omitempty,max=300"`
	Permissions *[]string `json:"permissions" validate:"omitempty,dive,required"`
}
