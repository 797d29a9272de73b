package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/dgallion1/mathreel/internal/mathspeech"
	"github.com/dgallion1/mathreel/internal/parser"
)

var (
	outlineFormat string
	outlineJSON   bool
	outlineLang   string
)

var outlineCmd = &cobra.Command{
	Use:   "outline <file>",
	Short: "Print the chapter tree recovered from a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := loadTree(cmd.Context(), args[0], outlineFormat)
		if err != nil {
			return err
		}
		mathspeech.ForLanguage(outlineLang).NarrateTree(root)
		if outlineJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(root)
		}
		printOutline(cmd.OutOrStdout(), root)
		return nil
	},
}

func init() {
	outlineCmd.Flags().StringVarP(&outlineFormat, "format", "f", "", "source format (inferred from the extension when empty)")
	outlineCmd.Flags().BoolVar(&outlineJSON, "json", false, "print the tree as JSON")
	outlineCmd.Flags().StringVarP(&outlineLang, "language", "l", "ja-JP", "narration language for formulas")
	rootCmd.AddCommand(outlineCmd)
}

// loadTree reads and parses a local document.
func loadTree(ctx context.Context, path, format string) (*doctree.ChapterNode, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := resolveFormat(path, format)
	if err != nil {
		return nil, err
	}
	doc, err := (&parser.Ingester{FallbackPdftotext: true}).Ingest(ctx, f, filepath.Base(path), raw, nil)
	if err != nil {
		return nil, err
	}
	return parser.Extract(doc)
}

func resolveFormat(path, format string) (doctree.Format, error) {
	if format != "" {
		return doctree.ParseFormat(format)
	}
	return doctree.FormatFromFilename(path)
}

// printOutline writes one line per node, indented by depth, with block counts.
func printOutline(w io.Writer, root *doctree.ChapterNode) {
	root.Walk(func(n *doctree.ChapterNode, path []string) {
		indent := strings.Repeat("  ", len(path))
		if n != root {
			indent += "  "
		}
		var text, math, figs int
		for _, b := range n.Blocks {
			switch b.Kind {
			case doctree.BlockText:
				text++
			case doctree.BlockMath:
				math++
			case doctree.BlockFigure:
				figs++
			}
		}
		title := n.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%s%s", indent, title)
		if text+math+figs > 0 {
			fmt.Fprintf(w, "  [text %d, math %d, figures %d]", text, math, figs)
		}
		fmt.Fprintln(w)
		for _, b := range n.Blocks {
			if b.Kind != doctree.BlockMath {
				continue
			}
			if s, ok := b.Math.Narration(); ok {
				fmt.Fprintf(w, "%s    %s -> %s\n", indent, b.Math.Raw, s)
			}
		}
	})
}
