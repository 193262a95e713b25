package entry

import "io/fs"

// TimestampsFromInfo 从 Lstat 结果中取创建/修改时间
// 创建时间取平台能提供的最接近的值，拿不到时退回修改时间
func TimestampsFromInfo(info fs.FileInfo) Timestamps {
	mod := info.ModTime()
	created, ok := createdTime(info)
	if !ok {
		created = mod
	}
	return Timestamps{
		Created:  NewTimestamp(created),
		Modified: NewTimestamp(mod),
	}
}
