package progress

type UpdateProgressPayload struct {
	CurrentPage int  `json:"current_page" validate:"min=0"`
	TotalPages  *int `json:"total_pages" validate:"omitempty,min=1"`
}

type RecentQuery struct {
	Limit int `query:"limit" json:"limit,omitempty" default:"10" validate:"min=1,max=100"`
}
