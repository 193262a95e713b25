package sidecar

import (
	"fmt"
	"os"

	"hashdex/pkg/entry"
	"hashdex/pkg/hashing"

	"go.uber.org/zap"
)

// LinkResolver 解析链接类侧车的目标 (平台相关，由外部提供)
type LinkResolver interface {
	Resolve(path string, data []byte) (string, error)
}

// Merger 把侧车文件解码为元数据贡献
type Merger struct {
	algorithms []hashing.Algorithm
	resolver   LinkResolver
	logger     *zap.SugaredLogger
}

func NewMerger(algs []hashing.Algorithm, resolver LinkResolver, logger *zap.SugaredLogger) *Merger {
	return &Merger{algorithms: algs, resolver: resolver, logger: logger}
}

// Merge 读取并解码侧车文件，返回一条元数据贡献
// ok=false 表示降级：读取或解析失败，贡献只带错误信息，调用方不得删除该文件
func (m *Merger) Merge(c Candidate) (entry.Metadata, bool) {
	md := entry.Metadata{
		Origin: entry.OriginSidecar,
		Name:   c.Name,
		Attributes: entry.MetadataAttributes{
			Type:       c.Rule.Type,
			SourcePath: c.Rel,
		},
	}
	if c.Info != nil {
		md.Size = c.Info.Size()
		ts := entry.TimestampsFromInfo(c.Info)
		md.Timestamps = &ts
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return m.degrade(md, fmt.Errorf("failed to read sidecar: %w", err))
	}
	md.Hashes = hashing.HashBytes(data, m.algorithms).Strings()

	payload, err := m.decode(c, data)
	if err != nil {
		return m.degrade(md, err)
	}

	md.Attributes.Format, md.Attributes.Transforms, md.Data = payload.embed()
	return md, true
}

// decode 每种 Kind 一种策略
func (m *Merger) decode(c Candidate, data []byte) (Payload, error) {
	switch c.Rule.Kind {
	case KindJSON:
		return decodeJSON(data)
	case KindText:
		if c.Rule.Type == "hash" {
			return decodeChecksum(data), nil
		}
		return TextPayload{Text: string(data)}, nil
	case KindBinary:
		return BinaryPayload{Data: data}, nil
	case KindLink:
		p := LinkPayload{Data: data}
		if m.resolver != nil {
			target, err := m.resolver.Resolve(c.Path, data)
			if err != nil {
				m.logger.Debugw("link resolve failed, embedding raw bytes", "path", c.Path, "error", err)
			} else {
				p.Target = target
			}
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported sidecar kind %s", c.Rule.Kind)
	}
}

func (m *Merger) degrade(md entry.Metadata, err error) (entry.Metadata, bool) {
	m.logger.Warnw("sidecar merge degraded", "sidecar", md.Name, "type", md.Attributes.Type, "error", err)
	md.Attributes.Error = err.Error()
	md.Data = nil
	return md, false
}
