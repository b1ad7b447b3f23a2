package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dgallion1/docxref/internal/doctree"
	"github.com/dgallion1/docxref/internal/labels"
	"github.com/dgallion1/docxref/internal/parser"
	"github.com/dgallion1/docxref/internal/xref"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "xref",
		Short: "Cross-reference resolver for rendered documents",
		Long: `xref repairs cross-reference links in HTML produced from LaTeX or
Markdown: it finds the element each label points at, injects an anchor,
and rewrites the link text to the element's number.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log resolution decisions to stderr")

	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(labelsCmd())
	rootCmd.AddCommand(verifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve every cross-reference in a rendered document",
		Long: `Resolve reference links in a rendered HTML document.

Labels are read from the optional source document. With --reconcile the
input is taken to be already typeset and equation links are re-resolved
against the typesetter's anchors in the same document.

Example:
  xref resolve --html paper.html --source paper.tex --out fixed.html
  xref resolve --html typeset.html --reconcile --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			htmlPath, _ := cmd.Flags().GetString("html")
			sourcePath, _ := cmd.Flags().GetString("source")
			outPath, _ := cmd.Flags().GetString("out")
			hintsPath, _ := cmd.Flags().GetString("hints")
			reconcile, _ := cmd.Flags().GetBool("reconcile")
			asJSON, _ := cmd.Flags().GetBool("json")

			if htmlPath == "" {
				return fmt.Errorf("--html flag is required")
			}
			hints, err := xref.LoadHints(hintsPath)
			if err != nil {
				return err
			}
			set, err := loadLabels(sourcePath)
			if err != nil {
				return err
			}
			tree, err := loadTree(htmlPath)
			if err != nil {
				return err
			}

			anchors := xref.MathJaxAnchors(tree)
			b := xref.NewBuild(tree, set,
				xref.WithHints(hints),
				xref.WithLogger(logger(cmd)),
				xref.WithTypesetAnchors(anchors),
			)
			summary := b.Resolve()
			result := map[string]any{"resolve": summary}
			if reconcile {
				result["reconcile"] = b.Reconcile(anchors)
			}
			result["links"] = xref.VerifyLinks(tree)

			// With --json and no --out, stdout carries only the summary.
			if outPath != "" || !asJSON {
				if err := writeTree(tree, outPath); err != nil {
					return err
				}
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			report := result["links"].(xref.LinkReport)
			fmt.Fprintf(cmd.ErrOrStderr(), "Processed %d links: %d fixed, %d existing, %d failed\n",
				summary.Processed, summary.Fixed, summary.Existing, summary.Failed)
			fmt.Fprintf(cmd.ErrOrStderr(), "Working: %d/%d\n", report.Working, report.Total)
			for _, c := range summary.Duplicates {
				fmt.Fprintf(cmd.ErrOrStderr(), "  duplicate number %q shared by %v\n", c.Number, c.Labels)
			}
			return nil
		},
	}
	cmd.Flags().String("html", "", "Rendered HTML document")
	cmd.Flags().StringP("source", "s", "", "LaTeX or Markdown source declaring the labels")
	cmd.Flags().StringP("out", "o", "", "Write the resolved document here (default stdout)")
	cmd.Flags().String("hints", "", "YAML file overriding the built-in resolution hints")
	cmd.Flags().Bool("reconcile", false, "Run the reconciliation pass against typeset equation anchors")
	cmd.Flags().Bool("json", false, "Print the run summary as JSON")
	return cmd
}

func labelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "labels <source>",
		Short: "Print the labels declared in a LaTeX or Markdown source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := loadLabels(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), set.All())
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <document.html>",
		Short: "Check that every reference link has a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(args[0])
			if err != nil {
				return err
			}
			report := xref.VerifyLinks(tree)
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Broken > 0 {
				return fmt.Errorf("%d of %d links are broken", report.Broken, report.Total)
			}
			return nil
		},
	}
}

func loadLabels(path string) (*labels.Set, error) {
	if path == "" {
		return labels.NewSet(), nil
	}
	p, err := parser.ForFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return p.Parse(f, path)
}

func loadTree(path string) (*doctree.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return doctree.Parse(bytes.NewReader(data))
}

func writeTree(tree *doctree.Tree, path string) error {
	if path == "" {
		return tree.Render(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := tree.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
