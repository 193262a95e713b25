package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName 是目标根目录下的用户忽略文件
const IgnoreFileName = ".hdxignore"

// DefaultRules 系统级默认排除规则 (Layer-1)
// 这些规则强制生效：索引产物永远不会被索引、哈希或合并
var DefaultRules = []string{
	// --- 本工具自己生成的索引产物 ---
	"*_meta.json",
	"*_directorymeta.json",
	IgnoreFileName,

	// --- 版本控制元数据 ---
	".git",

	// --- 常见垃圾文件 ---
	".DS_Store",                 // macOS
	"Thumbs.db",                 // Windows
	"desktop.ini",               // Windows
	`\$RECYCLE.BIN`,             // Windows ($ 需要转义，否则是正则锚点)
	"System Volume Information", // Windows
}

// Matcher 封装了 Layer-1 排除逻辑
// 它负责判断一个路径是否应该被完全忽略
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 只用静态规则编译匹配器 (默认规则 + 额外规则)
// 不触碰文件系统，便于单元测试
func NewMatcher(extra ...string) *Matcher {
	rules := make([]string, 0, len(DefaultRules)+len(extra))
	rules = append(rules, DefaultRules...)
	rules = append(rules, extra...)
	return &Matcher{ignorer: gitignore.CompileIgnoreLines(rules...)}
}

// NewMatcherForRoot 在静态规则之外，合并 rootPath 下的 .hdxignore 文件
func NewMatcherForRoot(rootPath string, extra ...string) (*Matcher, error) {
	ignoreFilePath := filepath.Join(rootPath, IgnoreFileName)

	if _, errStat := os.Stat(ignoreFilePath); errStat != nil {
		// 用户没定义 .hdxignore，仅编译静态规则
		return NewMatcher(extra...), nil
	}

	// 用户定义了 .hdxignore：文件内容和静态规则合并编译
	rules := make([]string, 0, len(DefaultRules)+len(extra))
	rules = append(rules, DefaultRules...)
	rules = append(rules, extra...)
	ignorer, err := gitignore.CompileIgnoreFileAndLines(ignoreFilePath, rules...)
	if err != nil {
		return nil, err
	}
	return &Matcher{ignorer: ignorer}, nil
}

// Matches 检查给定的路径是否匹配排除规则
// path: 相对于目标根目录的 "/" 分隔路径 (例如 "photos/photo_meta.json")
// isDir: 目录额外按 "path/" 匹配，只匹配目录的规则 (以 "/" 结尾) 依赖这一点
// 返回: true 表示应该排除
func (m *Matcher) Matches(path string, isDir bool) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	if m.ignorer.MatchesPath(path) {
		return true
	}
	return isDir && m.ignorer.MatchesPath(path+"/")
}
