package sidecar

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind 侧车负载的分类，是一个封闭集合
type Kind int

const (
	KindJSON Kind = iota
	KindText
	KindBinary
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	case KindLink:
		return "link"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind 把配置里的字符串转换成 Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "json":
		return KindJSON, nil
	case "text":
		return KindText, nil
	case "binary":
		return KindBinary, nil
	case "link":
		return KindLink, nil
	default:
		return 0, fmt.Errorf("unknown sidecar kind %q", s)
	}
}

// Payload 是解码后的侧车内容 (tagged union)
// 每个变体自带一种嵌入策略，不做运行时类型探测
type Payload interface {
	Kind() Kind
	// embed 返回 (format, transforms, data)
	embed() (string, []string, any)
}

// JSONPayload 结构化数据，紧凑后原样嵌入
type JSONPayload struct {
	Raw json.RawMessage
}

// TextPayload 纯文本
type TextPayload struct {
	Text string
}

// ChecksumPayload 校验和文件，按行解析
type ChecksumPayload struct {
	Lines []ChecksumLine
}

type ChecksumLine struct {
	Digest   string `json:"digest"`
	Filename string `json:"filename"`
}

// BinaryPayload 二进制内容，base64 嵌入 (可逆)
type BinaryPayload struct {
	Data []byte
}

// LinkPayload 快捷方式/链接类文件
// Target 为空时按不透明二进制处理
type LinkPayload struct {
	Data   []byte
	Target string
}

func (JSONPayload) Kind() Kind     { return KindJSON }
func (TextPayload) Kind() Kind     { return KindText }
func (ChecksumPayload) Kind() Kind { return KindText }
func (BinaryPayload) Kind() Kind   { return KindBinary }
func (LinkPayload) Kind() Kind     { return KindLink }

func (p JSONPayload) embed() (string, []string, any) {
	return "json", []string{"json_decode"}, p.Raw
}

func (p TextPayload) embed() (string, []string, any) {
	return "text", nil, p.Text
}

func (p ChecksumPayload) embed() (string, []string, any) {
	return "lines", []string{"checksum_parse"}, p.Lines
}

func (p BinaryPayload) embed() (string, []string, any) {
	return "base64", []string{"base64_encode"}, base64.StdEncoding.EncodeToString(p.Data)
}

func (p LinkPayload) embed() (string, []string, any) {
	if p.Target != "" {
		return "text", []string{"link_resolve"}, p.Target
	}
	return "base64", []string{"base64_encode"}, base64.StdEncoding.EncodeToString(p.Data)
}

// decodeJSON 校验并压缩 JSON，失败即为畸形侧车
func decodeJSON(data []byte) (Payload, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace(data)); err != nil {
		return nil, fmt.Errorf("malformed json: %w", err)
	}
	return JSONPayload{Raw: json.RawMessage(buf.Bytes())}, nil
}

// decodeChecksum 解析形如 "<digest>  <filename>" 或 "<digest> *<filename>" 的行
// 只有摘要没有文件名的行也接受
func decodeChecksum(data []byte) Payload {
	p := ChecksumPayload{Lines: []ChecksumLine{}}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		digest, name, _ := strings.Cut(line, " ")
		name = strings.TrimPrefix(strings.TrimSpace(name), "*")
		p.Lines = append(p.Lines, ChecksumLine{Digest: strings.ToUpper(digest), Filename: name})
	}
	return p
}
