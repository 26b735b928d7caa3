package domain

import "errors"

// Resolution identifies bar granularity, using the chart widget's tokens.
type Resolution string

const (
	Res1   Resolution = "1"
	Res5   Resolution = "5"
	Res15  Resolution = "15"
	Res30  Resolution = "30"
	Res60  Resolution = "60"
	Res240 Resolution = "240"
	Res1D  Resolution = "1D"
	Res1W  Resolution = "1W"
	Res1M  Resolution = "1M"
)

// ErrInvalidResolution is returned for tokens outside the supported set.
// Unknown tokens fail fast everywhere; there is no silent daily fallback.
var ErrInvalidResolution = errors.New("invalid resolution token")

var bucketSeconds = map[Resolution]int64{
	Res1:   60,
	Res5:   300,
	Res15:  900,
	Res30:  1800,
	Res60:  3600,
	Res240: 14400,
	Res1D:  86400,
	Res1W:  604800,
	Res1M:  2592000,
}

// SupportedResolutions lists every resolution token the feed accepts,
// ordered fine to coarse.
var SupportedResolutions = []Resolution{
	Res1, Res5, Res15, Res30, Res60, Res240, Res1D, Res1W, Res1M,
}

// BucketSeconds returns the bucket width in seconds for the resolution.
func (r Resolution) BucketSeconds() (int64, error) {
	secs, ok := bucketSeconds[r]
	if !ok {
		return 0, ErrInvalidResolution
	}
	return secs, nil
}

// Valid reports whether r is a supported resolution token.
func (r Resolution) Valid() bool {
	_, ok := bucketSeconds[r]
	return ok
}
