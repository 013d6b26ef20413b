//go:build !windows

package overlay

import (
	"context"
	"fmt"
)

type stubSelector struct{}

func newPlatformSelector(opts Options) Selector {
	return stubSelector{}
}

func (stubSelector) Select(ctx context.Context) (Selection, bool, error) {
	return Selection{}, false, fmt.Errorf("interactive region selection not implemented for this platform")
}
