package authoring

import (
	"errors"
	"fmt"

	"github.com/yungbote/arcblog-backend/internal/platform/lock"
)

var (
	// ErrBusy means another generation or stage transition holds the post.
	ErrBusy            = lock.ErrBusy
	ErrWorkflowClosed  = errors.New("development workflow closed")
	ErrWorkflowNotOpen = errors.New("development workflow not open")
	ErrPostNotFound    = errors.New("post not found")
	ErrForbidden       = errors.New("post belongs to another user")
)

type UnknownCategoryError struct {
	Category string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q", e.Category)
}

func IsUnknownCategory(err error) bool {
	var ue *UnknownCategoryError
	return errors.As(err, &ue)
}
