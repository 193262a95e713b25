//go:build linux

package entry

import (
	"io/fs"
	"syscall"
	"time"
)

// Linux 的 stat 没有出生时间，使用 ctime
func createdTime(info fs.FileInfo) (time.Time, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec)), true
}
