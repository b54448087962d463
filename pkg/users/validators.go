package users

type ListUsersQuery struct {
	Limit  int `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=200"`
	Offset int `query:"offset" json:"offset,omitempty" validate:"min=0"`
}

type UpdateUserPayload struct {
	Email       *string   `json:"email" mod:"lcase" validate:"omitempty,email"`
	DisplayName *string   `json:"display_name" validate:"omitempty,max=100"`
	Roles       *[]string `json:"roles" validate:"omitempty,min=1,dive,required"`
}
