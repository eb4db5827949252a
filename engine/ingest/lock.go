package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
)

const lockRetryDelay = 200 * time.Millisecond

// lockSource takes the per-source writer lock, waiting until ctx is done.
func lockSource(ctx context.Context, dir, source string) (func(), error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.Wrap(domain.ErrConfiguration, "ingest: lock dir", err)
	}
	fl := flock.New(filepath.Join(dir, "lexrag-"+source+".lock"))
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("ingest: lock %s: %w", source, err)
	}
	if !ok {
		return nil, fmt.Errorf("ingest: lock %s: not acquired", source)
	}
	return func() { _ = fl.Unlock() }, nil
}
