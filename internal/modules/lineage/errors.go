package lineage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/arcblog-backend/internal/domain"
)

var (
	ErrRootNotFound    = errors.New("arc has no root post")
	ErrPostNotFound    = errors.New("post not found")
	ErrForbidden       = errors.New("post belongs to another user")
	ErrUnauthenticated = errors.New("authentication required")
	ErrPostHasChildren = errors.New("post has child posts")
	ErrTitleRequired   = errors.New("title required")
	ErrUnknownInterest = types.ErrUnknownInterest
)

// OrphanedPostsError reports posts of an arc that could not be attached to
// the tree. It accompanies a usable tree and is never fatal.
type OrphanedPostsError struct {
	ArcID   uuid.UUID
	PostIDs []uuid.UUID
}

func (e *OrphanedPostsError) Error() string {
	ids := make([]string, 0, len(e.PostIDs))
	for _, id := range e.PostIDs {
		ids = append(ids, id.String())
	}
	return fmt.Sprintf("arc %s has %d orphaned posts: %s", e.ArcID, len(e.PostIDs), strings.Join(ids, ", "))
}

func IsOrphaned(err error) bool {
	var oe *OrphanedPostsError
	return errors.As(err, &oe)
}
