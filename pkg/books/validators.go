package books

import "strings"

type ListBooksQuery struct {
	Limit         int     `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset        int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	IncludeTags   *string `query:"includeTags" json:"includeTags,omitempty"`
	ExcludeTags   *string `query:"excludeTags" json:"excludeTags,omitempty"`
	IncludeGenres *string `query:"includeGenres" json:"includeGenres,omitempty"`
	ExcludeGenres *string `query:"excludeGenres" json:"excludeGenres,omitempty"`
	Status        *string `query:"status" json:"status,omitempty" validate:"omitempty,oneof=active archived"`
}

// Filter converts the comma-separated query params into a Filter.
func (q ListBooksQuery) Filter() Filter {
	return Filter{
		IncludeTags:   splitList(q.IncludeTags),
		ExcludeTags:   splitList(q.ExcludeTags),
		IncludeGenres: splitList(q.IncludeGenres),
		ExcludeGenres: splitList(q.ExcludeGenres),
	}
}

func splitList(s *string) []string {
	if s == nil {
		return nil
	}
	parts := []string{}
	for _, part := range strings.Split(*s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

type AddTagPayload struct {
	Name string `json:"name" mod:"trim" validate:"required,max=100"`
}

type ArchivePayload struct {
	Reason string `json:"reason" mod:"trim" validate:"required,max=300"`
}
