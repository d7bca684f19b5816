package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/hcengineering/tree-sitter-offload/internal/doctext"
	"github.com/hcengineering/tree-sitter-offload/internal/engine"
	"github.com/hcengineering/tree-sitter-offload/internal/render"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

const previewWidth = 40

// rangeFlags are shared by the commands that take a document range.
type rangeFlags struct {
	language string
	start    int
	end      int
}

func (f *rangeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.language, "lang", "l", "", "language name, detected from the file name when empty")
	cmd.Flags().IntVar(&f.start, "start", 0, "first UTF-16 code unit of the range")
	cmd.Flags().IntVar(&f.end, "end", -1, "end of the range, -1 for end of document")
}

// withSession opens the file argument, runs fn and closes the session.
func (a *app) withSession(cmd *cobra.Command, path string, f *rangeFlags, fn func(s *session, start, end int) error) (err error) {
	s, err := a.open(cmd, path, f.language)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.close()) }()
	start, end := s.bounds(f.start, f.end)
	return fn(s, start, end)
}

func newHighlightCmd(a *app) *cobra.Command {
	var f rangeFlags
	cmd := &cobra.Command{
		Use:   "highlight FILE",
		Short: "Print the file with syntax colors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			palette, err := render.LoadPalette(a.cfg.Theme)
			if err != nil {
				return err
			}
			return a.withSession(cmd, args[0], &f, func(s *session, start, end int) error {
				hl := s.engine.Highlights(s.ctx, s.snap, s.text, start, end)
				out := render.Highlighted(palette, s.text, hl, s.captureName)
				if !strings.HasSuffix(out, "\n") {
					out += "\n"
				}
				_, err := io.WriteString(cmd.OutOrStdout(), out)
				return err
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newTokensCmd(a *app) *cobra.Command {
	var f rangeFlags
	var all bool
	cmd := &cobra.Command{
		Use:   "tokens FILE",
		Short: "List highlight tokens with their language and capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, args[0], &f, func(s *session, start, end int) error {
				hl := s.engine.Highlights(s.ctx, s.snap, s.text, start, end)
				w := cmd.OutOrStdout()
				pos := hl.Start
				for _, tok := range hl.Tokens {
					name := s.captureName(tok.Language, tok.Capture)
					if name != "" || all {
						fmt.Fprintf(w, "%6d %4d  %s %s %s\n",
							pos, tok.Length,
							render.PadRight(s.languageName(tok.Language), 12),
							render.PadRight(orDash(name), 20),
							render.Truncate(slice(s.text, pos, pos+tok.Length), previewWidth))
					}
					pos += tok.Length
				}
				return nil
			})
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include uncaptured tokens")
	return cmd
}

func newFoldsCmd(a *app) *cobra.Command {
	var f rangeFlags
	var inner bool
	cmd := &cobra.Command{
		Use:   "folds FILE",
		Short: "List fold ranges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, args[0], &f, func(s *session, start, end int) error {
				w := cmd.OutOrStdout()
				for _, fold := range s.engine.FoldRanges(s.ctx, s.snap, s.text, start, end, inner) {
					line := formatRange(fold.Range)
					if fold.Collapsed {
						line += " collapsed"
					}
					if fold.HasText {
						line += fmt.Sprintf(" %q", fold.Text)
					}
					fmt.Fprintln(w, line)
				}
				return nil
			})
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&inner, "inner", false, "report the inner span of each fold")
	return cmd
}

func newIndentsCmd(a *app) *cobra.Command {
	var f rangeFlags
	var inner bool
	cmd := &cobra.Command{
		Use:   "indents FILE",
		Short: "List indent ranges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, args[0], &f, func(s *session, start, end int) error {
				w := cmd.OutOrStdout()
				for _, r := range s.engine.IndentRanges(s.ctx, s.snap, s.text, start, end, inner) {
					fmt.Fprintln(w, formatRange(r))
				}
				return nil
			})
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&inner, "inner", false, "report the inner span of each range")
	return cmd
}

func newForestCmd(a *app) *cobra.Command {
	var f rangeFlags
	cmd := &cobra.Command{
		Use:   "forest FILE",
		Short: "Show the tree of language regions found in the file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, args[0], &f, func(s *session, _, _ int) error {
				w := cmd.OutOrStdout()
				var walk func(i int)
				walk = func(i int) {
					e := s.snap.Entry(i)
					name := e.Hint.String()
					if e.Language != nil {
						name = e.Language.Name()
					}
					state := ""
					if !e.Parsed() {
						state = " unparsed"
					}
					fmt.Fprintf(w, "%s%s [%d, %d)%s\n",
						strings.Repeat("  ", e.Depth), name,
						doctext.ToNative(e.Range.Start), doctext.ToNative(e.Range.End), state)
					for _, c := range s.snap.Children(i) {
						walk(c)
					}
				}
				walk(0)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&f.language, "lang", "l", "", "language name, detected from the file name when empty")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var f rangeFlags
	var at, remove int
	var insert string
	var diff bool
	cmd := &cobra.Command{
		Use:   "edit FILE",
		Short: "Apply one edit in memory and report what an incremental reparse changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, args[0], &f, func(s *session, _, _ int) error {
				at = max(0, min(at, len(s.text)))
				remove = max(0, min(remove, len(s.text)-at))
				inserted := utf16.Encode([]rune(insert))

				next := make([]uint16, 0, len(s.text)-remove+len(inserted))
				next = append(next, s.text[:at]...)
				next = append(next, inserted...)
				next = append(next, s.text[at+remove:]...)

				edit := engine.Edit{
					Start:       at,
					OldEnd:      at + remove,
					NewEnd:      at + len(inserted),
					StartPoint:  pointAt(s.text, at),
					OldEndPoint: pointAt(s.text, at+remove),
					NewEndPoint: pointAt(next, at+len(inserted)),
				}
				snap, changed, err := s.engine.RebuildSnapshot(s.ctx, next, s.snap, edit)
				if err != nil {
					return err
				}
				defer snap.Close()

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "root reused: %t\n", snap.RootReused())
				for _, r := range changed {
					fmt.Fprintf(w, "changed %s\n", formatRange(r))
				}
				if diff {
					edited := s.engine.EditedSnapshot(s.snap, edit)
					defer edited.Close()
					for _, r := range s.engine.TreeDiff(edited, snap) {
						fmt.Fprintf(w, "tree diff [%d, %d)\n", r.Start, r.End)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&f.language, "lang", "l", "", "language name, detected from the file name when empty")
	cmd.Flags().IntVar(&at, "at", 0, "UTF-16 offset of the edit")
	cmd.Flags().IntVar(&remove, "delete", 0, "code units removed at the offset")
	cmd.Flags().StringVar(&insert, "insert", "", "text inserted at the offset")
	cmd.Flags().BoolVar(&diff, "diff", false, "also diff the edited root tree against the reparsed one")
	return cmd
}

func newLanguagesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List registered languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.newCatalog()
			if err != nil {
				return err
			}
			for _, name := range c.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func formatRange(r engine.Range) string {
	return fmt.Sprintf("%d:%d-%d:%d [%d, %d)",
		r.StartPoint.Row, r.StartPoint.Column, r.EndPoint.Row, r.EndPoint.Column, r.Start, r.End)
}

// pointAt returns the row and column of a native offset.
func pointAt(text []uint16, offset int) engine.Point {
	var p engine.Point
	for _, u := range text[:min(offset, len(text))] {
		if u == '\n' {
			p.Row++
			p.Column = 0
		} else {
			p.Column++
		}
	}
	return p
}

func slice(text []uint16, start, end int) string {
	end = min(end, len(text))
	if start >= end {
		return ""
	}
	return string(utf16.Decode(text[start:end]))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
