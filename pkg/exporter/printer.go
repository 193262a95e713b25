// Package exporter 读回索引产物并以人类可读的形式打印
package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"hashdex/pkg/entry"

	"github.com/dustin/go-humanize"
)

// ReadIndex 解析 WriteJSON 写出的产物
func ReadIndex(r io.Reader) (*entry.IndexEntry, error) {
	var root entry.IndexEntry
	dec := json.NewDecoder(r)
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	if root.SchemaVersion != entry.SchemaVersion {
		return nil, fmt.Errorf("unsupported index schema version %d", root.SchemaVersion)
	}
	return &root, nil
}

// PrintTree 模拟 git ls-tree 的输出，每个条目一行，按树的深度缩进
func PrintTree(w io.Writer, root *entry.IndexEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "TYPE\tID\tSIZE\tMETA\tDUPS\tNAME\n")
	printNode(tw, root, 0)
	return tw.Flush()
}

func printNode(w io.Writer, e *entry.IndexEntry, depth int) {
	kind := "file"
	name := e.Name
	switch {
	case e.IsDir():
		kind = "dir"
		name += "/"
	case e.Attributes.IsLink:
		kind = "link"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s%s\n",
		kind, shortID(e.ID.String()), fmtSize(e.Size), fmtCount(len(e.Metadata)), fmtCount(len(e.Duplicates)),
		strings.Repeat("  ", depth), name)
	for _, child := range e.Items {
		printNode(w, child, depth+1)
	}
}

// PrintEntry 打印单个条目的详情
func PrintEntry(w io.Writer, e *entry.IndexEntry) {
	fmt.Fprintf(w, "ID:       %s (%s)\n", e.ID, e.IDAlgorithm)
	fmt.Fprintf(w, "Type:     %s\n", e.Type)
	fmt.Fprintf(w, "Name:     %s\n", e.Name)
	fmt.Fprintf(w, "Path:     %s\n", e.Path)
	fmt.Fprintf(w, "Storage:  %s\n", e.Attributes.StorageName)
	fmt.Fprintf(w, "Size:     %s\n", humanize.Bytes(uint64(max(e.Size, 0))))
	fmt.Fprintf(w, "Modified: %s\n", e.Timestamps.Modified.ISO)
	for _, md := range e.Metadata {
		status := md.Attributes.Format
		if md.Degraded() {
			status = "error: " + md.Attributes.Error
		}
		fmt.Fprintf(w, "Metadata: %s %s (%s)\n", md.Attributes.Type, md.Name, status)
	}
	for _, d := range e.Duplicates {
		fmt.Fprintf(w, "Dup:      %s\n", d.Path)
	}
}

// Find 按 id 或存储名查找条目
func Find(root *entry.IndexEntry, key string) *entry.IndexEntry {
	var found *entry.IndexEntry
	root.Walk(func(e *entry.IndexEntry) bool {
		if e.ID.String() == key || e.Attributes.StorageName == key {
			found = e
			return false
		}
		return true
	})
	return found
}

func shortID(id string) string {
	if len(id) > 9 {
		return id[:9]
	}
	return id
}

func fmtSize(s int64) string {
	if s == 0 {
		return "-"
	}
	return humanize.Bytes(uint64(s))
}

func fmtCount(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}
