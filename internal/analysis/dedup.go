package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"cvtailor/internal/storage"
	"cvtailor/internal/types"

	"golang.org/x/sync/singleflight"
)

// Runner runs one analysis
type Runner interface {
	Run(ctx context.Context, req types.AnalyzeRequest) (*Result, error)
}

// Deduplicator collapses identical concurrent analyses for the same company
// into one run, so a retried request does not append a second record.
type Deduplicator struct {
	runner Runner
	group  singleflight.Group
}

// NewDeduplicator wraps runner
func NewDeduplicator(runner Runner) *Deduplicator {
	return &Deduplicator{runner: runner}
}

// Run executes the analysis or joins one already in flight. shared reports
// whether the result was handed to more than one caller. A caller whose ctx
// ends stops waiting; the run itself continues for the others.
func (d *Deduplicator) Run(ctx context.Context, req types.AnalyzeRequest) (res *Result, shared bool, err error) {
	key, err := requestKey(req)
	if err != nil {
		// invalid company names are rejected by the runner with a proper error
		res, err = d.runner.Run(ctx, req)
		return res, false, err
	}

	ch := d.group.DoChan(key, func() (any, error) {
		return d.runner.Run(context.WithoutCancel(ctx), req)
	})

	select {
	case r := <-ch:
		res, _ := r.Val.(*Result)
		return res, r.Shared, r.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func requestKey(req types.AnalyzeRequest) (string, error) {
	slug, err := storage.CompanySlug(req.Company)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(req.CVText))
	h.Write([]byte{0})
	h.Write([]byte(req.JobDescription))
	return slug + ":" + hex.EncodeToString(h.Sum(nil)), nil
}
