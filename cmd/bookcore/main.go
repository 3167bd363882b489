package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yuanying/bookcore/internal/book"
	"github.com/yuanying/bookcore/internal/config"
	"github.com/yuanying/bookcore/internal/pdf"
	"github.com/yuanying/bookcore/internal/unified"
)

// app is the state shared by subcommands once flags are parsed.
type app struct {
	configPath string
	format     string
	verbose    bool

	cfg    *config.Config
	log    *zap.Logger
	parser *unified.Parser
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "bookcore",
		Short: "Read EPUB, MOBI/AZW and PDF ebooks",
		Long: `bookcore parses EPUB, MOBI/AZW and PDF files into one reading model
and prints it as JSON. It also resolves location addresses, searches PDF
page text and renders PDF pages.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Configuration file (default: built-in settings)")
	root.PersistentFlags().StringVarP(&a.format, "format", "f", "", "Input format: epub, mobi or pdf (default: detect by extension)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newParseCmd(a),
		newSectionCmd(a),
		newCFICmd(a),
		newSearchCmd(a),
		newRenderCmd(a),
		newConfigCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfiguration(a.configPath)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Logging.ConsoleLogger.Level = "debug"
	}
	if a.format != "" {
		if _, ok := unified.ParseFormat(a.format); !ok {
			return fmt.Errorf("unknown format %q", a.format)
		}
	}
	log, err := cfg.Logging.Prepare()
	if err != nil {
		return fmt.Errorf("unable to prepare logger: %w", err)
	}
	a.cfg, a.log = cfg, log
	a.parser = unified.NewParser(cfg.Parser, pdf.NewEngine(), log)
	return nil
}

// open parses path and returns the book, which the caller must close.
func (a *app) open(path string) (*unified.UnifiedBook, error) {
	res := a.parser.ParseFile(path, book.Format(a.format))
	for _, w := range res.Warnings {
		a.log.Debug("Parse warning", zap.String("file", path), zap.String("warning", w))
	}
	if !res.Success {
		return nil, fmt.Errorf("%s: %w", path, res.Error)
	}
	return res.Book, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
