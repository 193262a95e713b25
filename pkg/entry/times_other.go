//go:build !linux && !darwin && !windows

package entry

import (
	"io/fs"
	"time"
)

func createdTime(fs.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
