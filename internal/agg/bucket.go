// Package agg holds the pure bar arithmetic: bucket boundary calculation and
// tick-into-bar aggregation. Nothing here touches I/O or shared state.
package agg

import "chartstream/internal/domain"

// BucketStart returns the aligned bucket start in epoch seconds for a
// timestamp in milliseconds. Unknown resolution tokens are an error, not a
// daily fallback.
func BucketStart(tsMs int64, resolution domain.Resolution) (int64, error) {
	secs, err := resolution.BucketSeconds()
	if err != nil {
		return 0, err
	}
	return (tsMs / 1000) / secs * secs, nil
}
