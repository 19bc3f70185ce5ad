package domain

import "context"

type Service interface {
	File(ctx context.Context, req FileRequest) (*Complaint, error)
	Get(ctx context.Context, id string) (*Complaint, error)
	// Transition applies an operator move.
	Transition(ctx context.Context, req TransitionRequest) (*Complaint, error)
}

type FileRequest struct {
	UserID      string `json:"user_id"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type TransitionRequest struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Response *string `json:"response,omitempty"`
}
