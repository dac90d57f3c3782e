package tags

import (
	"fmt"
	"time"

	"go.senan.xyz/taglib"
)

// ReadDuration returns the playback length taglib computes from the
// file's audio stream.
func ReadDuration(path string) (time.Duration, error) {
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return 0, fmt.Errorf("read audio properties: %w", err)
	}
	return props.Length, nil
}
