package server

// ThreadRequest is the payload for POST /api/tasks/:id/thread.
type ThreadRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// ParticipantRequest is the payload for POST /api/tasks/:id/participants.
type ParticipantRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
}

// LinkRequest is the payload for PUT /api/tasks/:id/link.
// An empty type clears the link.
type LinkRequest struct {
	Type     string `json:"type"`
	TargetID string `json:"targetId"`
}

// DeleteBatchRequest is the payload for DELETE /api/tasks.
type DeleteBatchRequest struct {
	IDs []string `json:"ids"`
}

// DeleteResponse reports how many records a delete removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}
