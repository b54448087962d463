package tags

type ListTagsQuery struct {
	Limit    int     `query:"limit" json:"limit,omitempty" default:"100" validate:"min=1,max=500"`
	Offset   int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Category *string `query:"category" json:"category,omitempty" validate:"omitempty,oneof=genre format content-rating"`
}

type CreateTagPayload struct {
	Name               string  `json:"name" mod:"trim" validate:"required,max=100"`
	Category           string  `json:"category" validate:"required,oneof=genre format content-rating"`
	RequiresPermission *string `json:"requires_permission" validate:"omitempty,max=100"`
}

type SetPreferencePayload struct {
	State string `json:"state" validate:"required,oneof=allow deny"`
}
