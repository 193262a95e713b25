package exporter

import (
	"bytes"
	"strings"
	"testing"

	"hashdex/pkg/entry"
	"hashdex/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *entry.IndexEntry {
	file := &entry.IndexEntry{
		SchemaVersion: entry.SchemaVersion,
		ID:            types.NewID(types.TypeFile, "0123456789ABCDEF"),
		Type:          types.TypeFile,
		Name:          "photo.jpg",
		Size:          2048,
		Attributes:    entry.Attributes{StorageName: "y0123456789ABCDEF.jpg"},
		Duplicates:    []entry.DuplicateRecord{{Name: "photo_copy.jpg", Path: "/d/photo_copy.jpg"}},
	}
	return &entry.IndexEntry{
		SchemaVersion: entry.SchemaVersion,
		ID:            types.NewID(types.TypeDirectory, "FEDCBA9876543210"),
		Type:          types.TypeDirectory,
		Name:          "album",
		Size:          2048,
		Items:         []*entry.IndexEntry{file},
	}
}

func TestReadIndex_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, entry.WriteJSON(&buf, sampleTree(), true))

	root, err := ReadIndex(&buf)
	require.NoError(t, err)
	assert.Equal(t, "album", root.Name)
	require.Len(t, root.Items, 1)
	assert.Equal(t, "photo_copy.jpg", root.Items[0].Duplicates[0].Name)
}

func TestReadIndex_WrongSchema(t *testing.T) {
	_, err := ReadIndex(strings.NewReader(`{"schema_version": 1}`))
	assert.ErrorContains(t, err, "schema version")

	_, err = ReadIndex(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestPrintTree(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTree(&buf, sampleTree()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "TYPE")
	assert.Contains(t, lines[1], "dir")
	assert.Contains(t, lines[1], "album/")
	assert.Contains(t, lines[2], "y01234567")
	assert.Contains(t, lines[2], "2.0 kB")
	assert.Contains(t, lines[2], "  photo.jpg")
}

func TestFind(t *testing.T) {
	root := sampleTree()
	assert.Equal(t, "photo.jpg", Find(root, "y0123456789ABCDEF.jpg").Name)
	assert.Equal(t, "album", Find(root, root.ID.String()).Name)
	assert.Nil(t, Find(root, "nope"))
}

func TestPrintEntry(t *testing.T) {
	var buf bytes.Buffer
	PrintEntry(&buf, sampleTree().Items[0])
	assert.Contains(t, buf.String(), "Storage:  y0123456789ABCDEF.jpg")
	assert.Contains(t, buf.String(), "Dup:      /d/photo_copy.jpg")
}
