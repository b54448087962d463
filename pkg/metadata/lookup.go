package metadata

import "context"

// Volume is the subset of externally-sourced book metadata the indexer can
// backfill. Nil fields mean the source had nothing to offer.
type Volume struct {
	Description     *string
	PageCount       *int
	Publisher       *string
	PublicationDate *string
}

// Lookup resolves an ISBN against an external metadata source. Implementations
// must treat misses as (nil, nil) rather than an error so that callers can
// distinguish "not found" from "source unavailable".
type Lookup interface {
	ByISBN(ctx context.Context, isbn string) (*Volume, error)
}

// NullLookup is a Lookup that never finds anything. It stands in when
// enrichment is disabled.
type NullLookup struct{}

func (NullLookup) ByISBN(_ context.Context, _ string) (*Volume, error) {
	return nil, nil
}
