package hashing

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"hashdex/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingReader 记录 Read 被调用时读出的总字节数
type countingReader struct {
	r     *bytes.Reader
	total int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.total += n
	return n, err
}

func TestHashReader_KnownVectors(t *testing.T) {
	d, err := HashReader(bytes.NewReader([]byte("hello world")), []Algorithm{MD5, SHA256})
	require.NoError(t, err)

	assert.Equal(t, types.Hash("5EB63BBBE01EEED093CB22BB8F5ACDC3"), d[MD5])
	assert.Equal(t, types.Hash("B94D27B9934D3E08A52E52D7DA7DABFAC484EFE37A5380EE9088F7ACE2EFCDE9"), d[SHA256])
}

func TestHashReader_SinglePass(t *testing.T) {
	data := make([]byte, 256*1024)
	_, err := rand.Read(data)
	require.NoError(t, err)

	cr := &countingReader{r: bytes.NewReader(data)}
	d, err := HashReader(cr, []Algorithm{MD5, SHA1, SHA256, SHA512})
	require.NoError(t, err)

	// 四种算法，数据只被读了一遍
	assert.Equal(t, len(data), cr.total)
	assert.Len(t, d, 4)
	assert.Equal(t, HashBytes(data, []Algorithm{SHA512})[SHA512], d[SHA512])
}

func TestHashReader_Deterministic(t *testing.T) {
	data := bytes.Repeat([]byte("hashdex "), 1000)
	algs := DefaultAlgorithms()

	d1, err := HashReader(bytes.NewReader(data), algs)
	require.NoError(t, err)
	d2, err := HashReader(bytes.NewReader(data), algs)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	for _, h := range d1 {
		assert.True(t, h.IsValid(), "digest must be uppercase hex: %s", h)
	}
}

func TestHashString_MatchesBytes(t *testing.T) {
	algs := DefaultAlgorithms()
	assert.Equal(t, HashBytes([]byte("photo.jpg"), algs), HashString("photo.jpg", algs))
	assert.NotEqual(t, HashString("a", algs), HashString("b", algs))
}

func TestHashFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	d, err := HashFile(path, DefaultAlgorithms())
	require.NoError(t, err)
	assert.Equal(t, HashString("hello world", DefaultAlgorithms()), d)

	_, err = HashFile(filepath.Join(tmpDir, "missing"), DefaultAlgorithms())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCombine_OrderMatters(t *testing.T) {
	algs := DefaultAlgorithms()
	a := HashString("photos", algs)
	b := HashString("home", algs)

	ab := Combine(a, b, algs)
	ba := Combine(b, a, algs)

	assert.NotEqual(t, ab, ba)
	assert.Equal(t, ab, Combine(a, b, algs))
	assert.Len(t, ab, len(algs))
}

func TestParseAlgorithms(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []Algorithm
		wantErr error
	}{
		{"defaults", []string{"md5", "sha256"}, []Algorithm{MD5, SHA256}, nil},
		{"sha256 always added", []string{"MD5"}, []Algorithm{MD5, SHA256}, nil},
		{"dedupe and sort", []string{"sha512", "md5", "sha512"}, []Algorithm{MD5, SHA256, SHA512}, nil},
		{"only sha256", []string{"sha256"}, nil, ErrTooFewAlgorithms},
		{"empty", nil, nil, ErrTooFewAlgorithms},
		{"unknown", []string{"crc32", "md5"}, nil, ErrUnknownAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlgorithms(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDigests_StringsRoundTrip(t *testing.T) {
	d := HashString("x", DefaultAlgorithms())
	m := d.Strings()
	assert.Equal(t, string(d[MD5]), m["md5"])

	m["crc32"] = "ignored"
	assert.Equal(t, d, FromStrings(m))
}
