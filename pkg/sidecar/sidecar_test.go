package sidecar

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hashdex/pkg/config"
	"hashdex/pkg/hashing"
	"hashdex/pkg/traversal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(config.DefaultSidecarRules())
	require.NoError(t, err)
	return c
}

// mustSiblings 在临时目录里创建文件并返回 Child 列表
func mustSiblings(t *testing.T, files map[string]string) (string, []traversal.Child) {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0644))
	}
	listing, err := traversal.NewLister(root, nil, nil).List(root)
	require.NoError(t, err)
	return root, listing.Siblings
}

func candidateNames(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestIsSidecar_Patterns(t *testing.T) {
	c := mustClassifier(t)

	tests := []struct {
		name string
		want bool
	}{
		{"doc.txt.json", true},
		{"video.info.json", true},
		{"data.json", false}, // 单独的 json 不是侧车
		{"video.description", true},
		{"archive.zip.md5", true},
		{"photo_thumb.jpg", true},
		{"photo.jpg", false},
		{"site.url", true},
		{"movie.srt", true},
		{"readme.txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsSidecar(tt.name))
		})
	}
}

func TestNewClassifier_BadKind(t *testing.T) {
	_, err := NewClassifier([]config.SidecarRule{{Type: "x", Kind: "xml", Patterns: []string{"*.x"}}})
	assert.Error(t, err)
}

func TestDiscover_Association(t *testing.T) {
	c := mustClassifier(t)
	_, siblings := mustSiblings(t, map[string]string{
		"doc.txt":           "doc",
		"doc.txt.json":      `{"a":1}`,
		"doc.md5":           "abc  doc.txt",
		"document.md5":      "x", // 前缀后不是分隔符，不关联
		"video.mp4":         "v",
		"video.description": "desc",
		"video_thumb.jpg":   "jpg",
		"other.description": "o",
	})

	docs := c.Discover("doc.txt", siblings)
	assert.Equal(t, []string{"doc.md5", "doc.txt.json"}, candidateNames(docs))
	assert.True(t, docs[0].ByStem)
	assert.Equal(t, ".md5", docs[0].Suffix)
	assert.False(t, docs[1].ByStem)
	assert.Equal(t, ".json", docs[1].Suffix)

	video := c.Discover("video.mp4", siblings)
	assert.Equal(t, []string{"video.description", "video_thumb.jpg"}, candidateNames(video))
	assert.Equal(t, "_thumb.jpg", video[1].Suffix)

	assert.Empty(t, c.Discover("missing.bin", siblings))
}

func TestDiscover_NeverSelf(t *testing.T) {
	c := mustClassifier(t)
	_, siblings := mustSiblings(t, map[string]string{"a.txt.json": "{}"})
	assert.Empty(t, c.Discover("a.txt.json", siblings))
}

func newTestMerger(resolver LinkResolver) *Merger {
	return NewMerger(hashing.DefaultAlgorithms(), resolver, zap.NewNop().Sugar())
}

func findCandidate(t *testing.T, cs []Candidate, name string) Candidate {
	t.Helper()
	for _, c := range cs {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("candidate %s not found", name)
	return Candidate{}
}

func TestMerge_JSONRoundTrip(t *testing.T) {
	c := mustClassifier(t)
	payload := `{"title": "Doc", "tags": ["a", "b"], "n": 3}`
	_, siblings := mustSiblings(t, map[string]string{"doc.txt": "x", "doc.txt.json": payload})

	cand := findCandidate(t, c.Discover("doc.txt", siblings), "doc.txt.json")
	md, ok := newTestMerger(nil).Merge(cand)
	require.True(t, ok)

	assert.Equal(t, "sidecar", md.Origin)
	assert.Equal(t, "json_metadata", md.Attributes.Type)
	assert.Equal(t, "json", md.Attributes.Format)
	assert.Equal(t, hashing.HashString(payload, hashing.DefaultAlgorithms()).Strings(), md.Hashes)

	raw, err := json.Marshal(md.Data)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(raw))
}

func TestMerge_MalformedJSONDegrades(t *testing.T) {
	c := mustClassifier(t)
	_, siblings := mustSiblings(t, map[string]string{"doc.txt": "x", "doc.txt.json": `{"broken":`})

	cand := findCandidate(t, c.Discover("doc.txt", siblings), "doc.txt.json")
	md, ok := newTestMerger(nil).Merge(cand)
	assert.False(t, ok)
	assert.True(t, md.Degraded())
	assert.Contains(t, md.Attributes.Error, "malformed json")
	assert.Nil(t, md.Data)
	assert.NotEmpty(t, md.Hashes, "provenance hashes are kept")
}

func TestMerge_UnreadableDegrades(t *testing.T) {
	c := mustClassifier(t)
	root, siblings := mustSiblings(t, map[string]string{"doc.txt": "x", "doc.txt.json": `{}`})
	require.NoError(t, os.Remove(filepath.Join(root, "doc.txt.json")))

	cand := findCandidate(t, c.Discover("doc.txt", siblings), "doc.txt.json")
	md, ok := newTestMerger(nil).Merge(cand)
	assert.False(t, ok)
	assert.Contains(t, md.Attributes.Error, "failed to read sidecar")
}

func TestMerge_TextBinaryChecksum(t *testing.T) {
	c := mustClassifier(t)
	thumb := []byte{0xff, 0xd8, 0x00, 0x01}
	_, siblings := mustSiblings(t, map[string]string{
		"video.mp4":         "v",
		"video.description": "A long description",
		"video_thumb.jpg":   string(thumb),
		"video.sha256":      "abcdef *video.mp4\n\n# comment\n",
	})
	cands := c.Discover("video.mp4", siblings)
	m := newTestMerger(nil)

	desc, ok := m.Merge(findCandidate(t, cands, "video.description"))
	require.True(t, ok)
	assert.Equal(t, "text", desc.Attributes.Format)
	assert.Equal(t, "A long description", desc.Data)

	bin, ok := m.Merge(findCandidate(t, cands, "video_thumb.jpg"))
	require.True(t, ok)
	assert.Equal(t, "base64", bin.Attributes.Format)
	decoded, err := base64.StdEncoding.DecodeString(bin.Data.(string))
	require.NoError(t, err)
	assert.Equal(t, thumb, decoded)

	sum, ok := m.Merge(findCandidate(t, cands, "video.sha256"))
	require.True(t, ok)
	assert.Equal(t, "lines", sum.Attributes.Format)
	assert.Equal(t, []ChecksumLine{{Digest: "ABCDEF", Filename: "video.mp4"}}, sum.Data)
}

type fakeResolver struct {
	target string
	err    error
}

func (f fakeResolver) Resolve(string, []byte) (string, error) { return f.target, f.err }

func TestMerge_Link(t *testing.T) {
	c := mustClassifier(t)
	_, siblings := mustSiblings(t, map[string]string{"site.html": "h", "site.url": "[InternetShortcut]\nURL=https://example.com\n"})
	cand := findCandidate(t, c.Discover("site.html", siblings), "site.url")

	// 没有解析器：不透明二进制
	md, ok := newTestMerger(nil).Merge(cand)
	require.True(t, ok)
	assert.Equal(t, "base64", md.Attributes.Format)

	// 有解析器：嵌入目标
	md, ok = newTestMerger(fakeResolver{target: "https://example.com"}).Merge(cand)
	require.True(t, ok)
	assert.Equal(t, "text", md.Attributes.Format)
	assert.Equal(t, "https://example.com", md.Data)

	// 解析失败：退回二进制，不算降级
	md, ok = newTestMerger(fakeResolver{err: errors.New("boom")}).Merge(cand)
	require.True(t, ok)
	assert.Equal(t, "base64", md.Attributes.Format)
}

func TestKind_String(t *testing.T) {
	for _, s := range []string{"json", "text", "binary", "link"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, s, k.String())
	}
	_, err := ParseKind("xml")
	assert.Error(t, err)
}
