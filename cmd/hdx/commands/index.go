package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"hashdex/pkg/app"
	"hashdex/pkg/config"
	"hashdex/pkg/entry"
	"hashdex/pkg/rename"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	outFile    string
	catalogDSN string
	compact    bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a file or directory tree",
	Long: `Index computes content-derived ids for every file and directory under path,
merges sidecar metadata files into their primary entries and writes the JSON index.

With --rename every item is renamed to its storage name and byte-identical
duplicates are deleted. Use --dry-run to see what would change.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]

		// 1. 配置 (文件 + 环境变量 + flags)
		cfg, err := config.FromViper()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("catalog") {
			cfg.Catalog.Enabled = true
			cfg.Catalog.DSN = catalogDSN
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		// 2. 组装并运行
		ctx := cmd.Context()
		start := time.Now()
		a, err := app.NewApp(ctx, cfg, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Run(ctx, target)
		if err != nil {
			if report != nil {
				printSummary(cmd.ErrOrStderr(), report, time.Since(start))
			}
			return err
		}

		// 3. 输出索引
		if report.Root != nil {
			if err := writeIndex(cmd.OutOrStdout(), target, report.Root); err != nil {
				return err
			}
		}
		printSummary(cmd.ErrOrStderr(), report, time.Since(start))
		return nil
	},
}

// writeIndex "-" 写到 stdout；为空时写到目标旁边的默认产物文件
func writeIndex(stdout io.Writer, target string, root *entry.IndexEntry) error {
	dest := outFile
	if dest == "" {
		dest = defaultOutFile(target, root.IsDir())
	}
	if dest == "-" {
		return entry.WriteJSON(stdout, root, !compact)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := entry.WriteJSON(w, root, !compact); err != nil {
		f.Close()
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// defaultOutFile 文件: <path>_meta.json；目录: <dir>/<name>_directorymeta.json
// 这两种文件名都在默认排除规则里，不会被下一次运行索引
func defaultOutFile(target string, isDir bool) string {
	clean := filepath.Clean(target)
	if isDir {
		return filepath.Join(clean, filepath.Base(clean)+"_directorymeta.json")
	}
	return clean + "_meta.json"
}

func printSummary(w io.Writer, r *app.Report, elapsed time.Duration) {
	if r.Build == nil {
		return
	}
	b := r.Build
	var size int64
	if r.Root != nil {
		size = r.Root.Size
	}
	fmt.Fprintf(w, "✅ Indexed %d files, %d directories (%s) in %s\n",
		b.Files, b.Dirs, humanize.Bytes(uint64(max(size, 0))), elapsed.Round(time.Millisecond))
	if b.Duplicates > 0 {
		fmt.Fprintf(w, "   %d duplicates absorbed\n", b.Duplicates)
	}
	for _, ie := range b.Errors {
		fmt.Fprintf(w, "⚠️  %s\n", ie.Error())
	}
	for _, o := range b.Orphans {
		fmt.Fprintf(w, "⚠️  sidecar without primary, not indexed: %s\n", o)
	}

	if r.Renames != nil {
		fmt.Fprintf(w, "   renamed %d, already named %d, collisions %d, dry-run %d\n",
			r.Renames.Count(rename.StatusRenamed),
			r.Renames.Count(rename.StatusAlreadyNamed),
			r.Renames.Count(rename.StatusSkippedCollision),
			r.Renames.Count(rename.StatusSkippedDryRun))
		if n := len(r.Renames.Deleted); n > 0 {
			fmt.Fprintf(w, "   deleted %d duplicates\n", n)
		}
	}
	if r.Drain != nil && len(r.Drain.Deleted)+len(r.Drain.Failed) > 0 {
		fmt.Fprintf(w, "   deleted %d merged sidecars, %d failed\n", len(r.Drain.Deleted), len(r.Drain.Failed))
	}
	fmt.Fprintf(w, "   run %s\n", r.RunID)
}

func init() {
	f := indexCmd.Flags()
	f.StringVarP(&outFile, "outfile", "o", "", `output file ("-" for stdout, default next to the target)`)
	f.BoolVar(&compact, "compact", false, "write compact JSON")
	f.Bool("rename", false, "rename items to their storage name and delete duplicates")
	f.Bool("dry-run", false, "report renames without touching the filesystem")
	f.Bool("merge", true, "merge sidecar files into their primary entry")
	f.Bool("merge-delete", false, "merge sidecar files and delete them after a successful run")
	f.Bool("exif", false, "extract embedded metadata with exiftool")
	f.StringSlice("algorithms", nil, "hash algorithms (sha256 is always included)")
	f.String("id-algorithm", "", "algorithm used for ids")
	f.Int("workers", 0, "parallel hashing workers per directory")
	f.StringVar(&catalogDSN, "catalog", "", "persist the dedup registry to this catalog DSN")
	f.String("snapshot", "", "pre-seed and save the dedup registry snapshot at this path")

	mustBind(indexCmd, map[string]string{
		"rename":            "rename",
		"dry_run":           "dry-run",
		"merge":             "merge",
		"merge_delete":      "merge-delete",
		"exif.enabled":      "exif",
		"hash.algorithms":   "algorithms",
		"hash.id_algorithm": "id-algorithm",
		"workers":           "workers",
		"registry.snapshot": "snapshot",
	}, false)

	rootCmd.AddCommand(indexCmd)
}
