package interfaces

import (
	"context"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
)

// BranchClient queries the current head commit of a branch
type BranchClient interface {
	// GetHeadCommit returns the commit SHA the subscription's branch points to
	GetHeadCommit(ctx context.Context, sub *model.Subscription) (string, error)
}
