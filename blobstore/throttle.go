package blobstore

import (
	"context"
	"io"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ThrottleConfig bounds the upload pressure a store may put on shared
// infrastructure. Zero values mean unlimited.
type ThrottleConfig struct {
	// UploadBytesPerSec caps the aggregate Put throughput.
	UploadBytesPerSec int64
	// MaxConcurrentPuts caps the number of in-flight Put calls.
	MaxConcurrentPuts int64
}

// Throttled wraps a BlobStore with rate and concurrency limits on Put.
// Reads are passed through untouched: fetching a cache is latency
// sensitive, publishing one is background work.
type Throttled struct {
	BlobStore

	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

// Throttle wraps bs with the given limits.
func Throttle(bs BlobStore, cfg ThrottleConfig) *Throttled {
	t := &Throttled{BlobStore: bs}
	if cfg.UploadBytesPerSec > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.UploadBytesPerSec), int(cfg.UploadBytesPerSec))
	}
	if cfg.MaxConcurrentPuts > 0 {
		t.sem = semaphore.NewWeighted(cfg.MaxConcurrentPuts)
	}
	return t
}

// Put applies the configured limits, then delegates.
func (t *Throttled) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	if t.sem != nil {
		if err := t.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer t.sem.Release(1)
	}
	if t.limiter != nil {
		r = &limitedReader{ctx: ctx, r: r, limiter: t.limiter}
	}
	return t.BlobStore.Put(ctx, name, r, size)
}

// limitedReader debits the rate limiter as bytes flow through it.
type limitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (l *limitedReader) Read(p []byte) (int, error) {
	// Cap reads at the limiter burst so WaitN can always succeed.
	if burst := l.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.limiter.WaitN(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
