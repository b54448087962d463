package invitations

type CreateInvitationPayload struct {
	Email string `json:"email" mod:"lcase" validate:"required,email"`
}

// CreateInvitationResponse carries the plaintext token. It is shown exactly
// once; only the hash survives server-side.
type CreateInvitationResponse struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}
