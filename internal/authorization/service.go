package authorization

import "context"

// Service decides whether the actor carried by ctx may perform action on object.
type Service interface {
	Authorize(ctx context.Context, object string, action string) error
	AssignRole(ctx context.Context, operatorID string, role string) error
}
