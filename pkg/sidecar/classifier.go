// Package sidecar 识别同级目录中的侧车文件，并把它们的内容合并进主条目
package sidecar

import (
	"fmt"
	"strings"

	"hashdex/pkg/config"
	"hashdex/pkg/pathmodel"
	"hashdex/pkg/traversal"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Rule 编译后的侧车规则
type Rule struct {
	Type    string
	Kind    Kind
	matcher *gitignore.GitIgnore
}

func (r Rule) matches(name string) bool {
	return r.matcher.MatchesPath(name)
}

// Candidate 是与某个主条目关联的侧车文件
type Candidate struct {
	traversal.Child
	Rule   Rule
	Suffix string // 主名称之后的剩余部分，重命名时拼接到存储名后面
	ByStem bool   // 通过去扩展名的前缀关联
}

// Classifier 持有全部侧车规则
type Classifier struct {
	rules []Rule
}

// NewClassifier 编译配置中的侧车规则
func NewClassifier(rules []config.SidecarRule) (*Classifier, error) {
	c := &Classifier{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		kind, err := ParseKind(r.Kind)
		if err != nil {
			return nil, fmt.Errorf("sidecar rule %q: %w", r.Type, err)
		}
		c.rules = append(c.rules, Rule{
			Type:    r.Type,
			Kind:    kind,
			matcher: gitignore.CompileIgnoreLines(r.Patterns...),
		})
	}
	return c, nil
}

// IsSidecar 是 Layer-2 纯谓词：名称匹配任一侧车模式
func (c *Classifier) IsSidecar(name string) bool {
	_, ok := c.Match(name)
	return ok
}

// Match 返回第一条匹配的规则 (按配置顺序)
func (c *Classifier) Match(name string) (Rule, bool) {
	if c == nil {
		return Rule{}, false
	}
	for _, r := range c.rules {
		if r.matches(name) {
			return r, true
		}
	}
	return Rule{}, false
}

// Discover 在完整的 siblings 列表中找出与 primaryName 关联的侧车文件
// 关联方式：
//   - 完整名称前缀：doc.txt -> doc.txt.json
//   - 去扩展名前缀：video.mp4 -> video.description, video_thumb.jpg
//
// 结果保持 siblings 的顺序
func (c *Classifier) Discover(primaryName string, siblings []traversal.Child) []Candidate {
	stem := pathmodel.Split(primaryName).Stem

	var out []Candidate
	for _, s := range siblings {
		if s.IsDir || s.Name == primaryName {
			continue
		}
		rule, ok := c.Match(s.Name)
		if !ok {
			continue
		}

		if suffix, ok := cutAssociated(s.Name, primaryName); ok {
			out = append(out, Candidate{Child: s, Rule: rule, Suffix: suffix})
			continue
		}
		if stem != primaryName {
			if suffix, ok := cutAssociated(s.Name, stem); ok {
				out = append(out, Candidate{Child: s, Rule: rule, Suffix: suffix, ByStem: true})
			}
		}
	}
	return out
}

// cutAssociated 要求前缀之后紧跟 "." 或 "_"，避免 "doc" 误关联 "document.md5"
func cutAssociated(name, prefix string) (string, bool) {
	if prefix == "" || !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
		return "", false
	}
	rest := name[len(prefix):]
	if rest[0] != '.' && rest[0] != '_' {
		return "", false
	}
	return rest, true
}
