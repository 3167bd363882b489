package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/yuanying/bookcore/internal/book"
	"github.com/yuanying/bookcore/internal/cfi"
	"github.com/yuanying/bookcore/internal/config"
	"github.com/yuanying/bookcore/internal/unified"
)

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse FILE...",
		Short: "Parse ebooks and print the normalized result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs error
			for _, path := range args {
				res := a.parser.ParseFile(path, book.Format(a.format))
				if res.Success {
					a.log.Info("Parsed", zap.String("file", path),
						zap.Int("sections", len(res.Book.Sections)),
						zap.Duration("elapsed", res.Performance.ParseDuration))
				} else {
					errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, res.Error))
				}
				err := writeJSON(cmd.OutOrStdout(), res)
				if res.Book != nil {
					err = multierr.Append(err, res.Book.Close())
				}
				if err != nil {
					return err
				}
			}
			return errs
		},
	}
}

func newSectionCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "section FILE INDEX",
		Short: "Print one section with its content statistics",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid section index %q: %w", args[1], err)
			}
			ub, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, ub.Close()) }()

			if index < 0 || index >= len(ub.Sections) {
				return fmt.Errorf("section %d out of range (book has %d)", index, len(ub.Sections))
			}
			s := ub.Sections[index]
			if raw {
				text, err := s.Load()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
				return err
			}
			stats, err := s.Analyze()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				*unified.UnifiedSection
				Stats unified.SectionStats `json:"stats"`
			}{s, stats})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the section content instead of statistics")
	return cmd
}

type cfiView struct {
	Address string   `json:"address"`
	Range   bool     `json:"range"`
	Paths   []string `json:"paths,omitempty"`
	Parent  []string `json:"parent,omitempty"`
	Start   []string `json:"start,omitempty"`
	End     []string `json:"end,omitempty"`
}

func pathStrings(paths []cfi.Path) []string {
	var out []string
	for _, p := range paths {
		out = append(out, p.String())
	}
	return out
}

func newCFICmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cfi",
		Short: "Work with location addresses",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "parse ADDRESS",
		Short: "Parse an address and print its structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cfi.Parse(args[0])
			if err != nil {
				return fmt.Errorf("grammar parse error: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), cfiView{
				Address: c.String(),
				Range:   c.IsRange(),
				Paths:   pathStrings(c.Paths),
				Parent:  pathStrings(c.Parent),
				Start:   pathStrings(c.Start),
				End:     pathStrings(c.End),
			})
		},
	}, &cobra.Command{
		Use:   "resolve FILE ADDRESS",
		Short: "Resolve an address against a book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if _, err := cfi.Parse(args[1]); err != nil {
				return fmt.Errorf("grammar parse error: %w", err)
			}
			ub, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, ub.Close()) }()

			dest, err := ub.ResolveCFI(args[1])
			if err != nil {
				var perr *cfi.ParseError
				if errors.As(err, &perr) {
					return fmt.Errorf("grammar parse error: %w", err)
				}
				return fmt.Errorf("resolution failed: %w", err)
			}
			out := struct {
				Index   int    `json:"index"`
				Section string `json:"section"`
				Href    string `json:"href"`
				Path    string `json:"path,omitempty"`
				Offset  int    `json:"offset"`
				Node    string `json:"node,omitempty"`
			}{Index: dest.Index, Section: dest.Section.ID, Href: dest.Section.Href, Offset: dest.Offset}
			if len(dest.Path) > 0 {
				out.Path = dest.Path.String()
			}
			if dest.Node != nil {
				out.Node = dest.Node.Data
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	})
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search FILE QUERY",
		Short: "Search the page text of a PDF",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ub, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, ub.Close()) }()

			hits, err := ub.Search(args[1])
			if err != nil {
				return err
			}
			a.log.Debug("Search done", zap.String("query", args[1]), zap.Int("hits", len(hits)))
			return writeJSON(cmd.OutOrStdout(), hits)
		},
	}
}

func newRenderCmd(a *app) *cobra.Command {
	var (
		output string
		scale  float64
	)
	cmd := &cobra.Command{
		Use:   "render FILE PAGE",
		Short: "Render a PDF page to an image file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			page, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid page %q: %w", args[1], err)
			}
			if scale <= 0 {
				scale = a.cfg.Render.Scale
			}
			if output == "" {
				output = fmt.Sprintf("page-%d.png", page)
			}
			ub, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, ub.Close()) }()

			img, err := ub.RenderPage(page, scale)
			if err != nil {
				return err
			}
			if err := imaging.Save(img, output); err != nil {
				return fmt.Errorf("unable to save page image: %w", err)
			}
			a.log.Info("Page rendered", zap.Int("page", page), zap.String("output", output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output image path, format chosen by extension (default: page-N.png)")
	cmd.Flags().Float64Var(&scale, "scale", 0, "Scale factor (default: from configuration)")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the default configuration",
		Args:  cobra.NoArgs,
		// Loading a configuration is not needed here.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.Prepare()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
