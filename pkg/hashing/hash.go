package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"hashdex/pkg/types"
)

// Algorithm 定义支持的摘要算法
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// DedupKey 是去重注册表使用的算法，必须始终被计算
const DedupKey = SHA256

var (
	ErrUnknownAlgorithm = errors.New("unknown hash algorithm")
	ErrTooFewAlgorithms = errors.New("at least two hash algorithms are required")
)

// DefaultAlgorithms 精简集合：md5 + sha256
func DefaultAlgorithms() []Algorithm {
	return []Algorithm{MD5, SHA256}
}

func (a Algorithm) String() string { return string(a) }

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
	}
}

// ParseAlgorithms 校验并规范化算法列表
// 规则：去重、小写、按名称排序、强制包含 sha256、至少两种
func ParseAlgorithms(names []string) ([]Algorithm, error) {
	seen := make(map[Algorithm]struct{}, len(names)+1)
	for _, n := range names {
		a := Algorithm(strings.ToLower(strings.TrimSpace(n)))
		if a == "" {
			continue
		}
		if _, err := a.newHash(); err != nil {
			return nil, err
		}
		seen[a] = struct{}{}
	}
	seen[DedupKey] = struct{}{}

	if len(seen) < 2 {
		return nil, ErrTooFewAlgorithms
	}

	algs := make([]Algorithm, 0, len(seen))
	for a := range seen {
		algs = append(algs, a)
	}
	sort.Slice(algs, func(i, j int) bool { return algs[i] < algs[j] })
	return algs, nil
}

// Digests 是 算法 -> 摘要 的映射
type Digests map[Algorithm]types.Hash

// Get 返回指定算法的摘要
func (d Digests) Get(a Algorithm) types.Hash {
	return d[a]
}

// Strings 转换为可序列化的 map (key 为算法名)
func (d Digests) Strings() map[string]string {
	out := make(map[string]string, len(d))
	for a, h := range d {
		out[string(a)] = string(h)
	}
	return out
}

// FromStrings 是 Strings 的逆操作，未知算法会被丢弃
func FromStrings(m map[string]string) Digests {
	out := make(Digests, len(m))
	for k, v := range m {
		a := Algorithm(k)
		if _, err := a.newHash(); err != nil {
			continue
		}
		out[a] = types.Hash(v)
	}
	return out
}

// HashReader 单次遍历数据流，同时计算所有算法的摘要
// 数据源只读一遍，不会为每种算法重复读取
func HashReader(r io.Reader, algs []Algorithm) (Digests, error) {
	hashers := make([]hash.Hash, len(algs))
	writers := make([]io.Writer, len(algs))
	for i, a := range algs {
		h, err := a.newHash()
		if err != nil {
			return nil, err
		}
		hashers[i] = h
		writers[i] = h
	}

	if _, err := io.Copy(io.MultiWriter(writers...), r); err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	out := make(Digests, len(algs))
	for i, a := range algs {
		out[a] = encode(hashers[i].Sum(nil))
	}
	return out, nil
}

// HashFile 打开文件并流式计算摘要
func HashFile(path string, algs []Algorithm) (Digests, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	d, err := HashReader(f, algs)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return d, nil
}

// HashBytes 计算内存数据的摘要
func HashBytes(data []byte, algs []Algorithm) Digests {
	out := make(Digests, len(algs))
	for _, a := range algs {
		h, err := a.newHash()
		if err != nil {
			continue
		}
		h.Write(data)
		out[a] = encode(h.Sum(nil))
	}
	return out
}

// HashString 对字符串的 UTF-8 编码计算摘要 (用于名称/路径)
func HashString(s string, algs []Algorithm) Digests {
	return HashBytes([]byte(s), algs)
}

// Combine 两层哈希：对每种算法，把 a 和 b 的摘要拼接后再哈希一次
// 目录身份 = H( H(name) + H(parentName) )
func Combine(a, b Digests, algs []Algorithm) Digests {
	out := make(Digests, len(algs))
	for _, alg := range algs {
		h, err := alg.newHash()
		if err != nil {
			continue
		}
		h.Write([]byte(a[alg]))
		h.Write([]byte(b[alg]))
		out[alg] = encode(h.Sum(nil))
	}
	return out
}

func encode(sum []byte) types.Hash {
	return types.Hash(strings.ToUpper(hex.EncodeToString(sum)))
}
