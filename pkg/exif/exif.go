// Package exif 通过外部 exiftool 进程提取嵌入的元数据
package exif

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"hashdex/pkg/pathmodel"
)

var ErrUnavailable = errors.New("metadata extractor unavailable")

// Extractor 文本输入 (路径)，JSON 输出
// 返回 (nil, nil) 表示该文件没有可提取的数据
type Extractor interface {
	Extract(ctx context.Context, path string) (map[string]any, error)
}

// 会暴露本机路径或访问状态的字段，不进入索引
var strippedKeys = map[string]struct{}{
	"SourceFile":          {},
	"Directory":           {},
	"FileName":            {},
	"FilePermissions":     {},
	"FileAccessDate":      {},
	"FileInodeChangeDate": {},
	"FileModifyDate":      {},
	"ExifToolVersion":     {},
}

// ExifTool 调用 exiftool -json -n
type ExifTool struct {
	binary   string
	excluded map[string]struct{}

	once     sync.Once
	resolved string
	err      error
}

func NewExifTool(binary string, excludeExtensions []string) *ExifTool {
	if binary == "" {
		binary = "exiftool"
	}
	ex := make(map[string]struct{}, len(excludeExtensions))
	for _, e := range excludeExtensions {
		ex[strings.TrimPrefix(strings.ToLower(e), ".")] = struct{}{}
	}
	return &ExifTool{binary: binary, excluded: ex}
}

// Available 只解析一次二进制位置，结果在本次运行内缓存
func (x *ExifTool) Available() error {
	x.once.Do(func() {
		x.resolved, x.err = exec.LookPath(x.binary)
		if x.err != nil {
			x.err = fmt.Errorf("%w: %s: %w", ErrUnavailable, x.binary, x.err)
		}
	})
	return x.err
}

func (x *ExifTool) Excluded(path string) bool {
	_, ok := x.excluded[pathmodel.Extension(filepath.Base(path))]
	return ok
}

func (x *ExifTool) Extract(ctx context.Context, path string) (map[string]any, error) {
	if x.Excluded(path) {
		return nil, nil
	}
	if err := x.Available(); err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, x.resolved, "-json", "-n", "--", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("exiftool failed on %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	return decode(stdout.Bytes())
}

// decode 取 JSON 数组的第一个元素并去掉敏感字段
func decode(out []byte) (map[string]any, error) {
	var records []map[string]any
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, fmt.Errorf("malformed exiftool output: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	data := records[0]
	for k := range strippedKeys {
		delete(data, k)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}
