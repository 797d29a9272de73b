package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mathreel/internal/doctree"
	"github.com/dgallion1/mathreel/internal/mathspeech"
)

var narrateLang string

var narrateCmd = &cobra.Command{
	Use:   "narrate <latex>...",
	Short: "Print the spoken form of LaTeX formulas",
	Long:  "Reads formulas from the arguments, or one per line from stdin when none are given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		exprs := args
		if len(exprs) == 0 {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			exprs = strings.Split(strings.TrimSpace(string(data)), "\n")
		}
		narrate(cmd.OutOrStdout(), mathspeech.ForLanguage(narrateLang), exprs)
		return nil
	},
}

func init() {
	narrateCmd.Flags().StringVarP(&narrateLang, "language", "l", "ja-JP", "narration language")
	rootCmd.AddCommand(narrateCmd)
}

func narrate(w io.Writer, n *mathspeech.Narrator, exprs []string) {
	for _, raw := range exprs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		fmt.Fprintln(w, n.Narrate(doctree.MathBlock(raw, false).Math))
	}
}
