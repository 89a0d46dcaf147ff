package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/disintegration/imaging"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/yuanying/epubspread/internal/config"
	"github.com/yuanying/epubspread/internal/session"
	"github.com/yuanying/epubspread/internal/shell"
)

const (
	defaultCoverSize = 600
	infoWrapWidth    = 72
)

// cliOptions is the resolved configuration of one invocation.
type cliOptions struct {
	InputPath string
	Config    *config.Config
	Logger    *slog.Logger
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "epubspread",
		Short: "Read EPUB books two pages at a time",
		Long: `epubspread paginates EPUB books for a fixed page size and lets you
turn through them page by page or as two-page spreads.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML configuration file")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text, json")
	pf.BoolP("verbose", "v", false, "Enable debug logging (overrides --log-level)")
	pf.Int("width", 0, "Page width in layout units (default from config)")
	pf.Int("height", 0, "Page height in layout units (default from config)")
	pf.Int("font-size", 0, "Font size in layout units (default from config)")
	pf.Float64("line-height", 0, "Line height as a multiple of the font size (default from config)")
	pf.Int("margin", 0, "Left and right page margin (default from config)")
	pf.Bool("spread", true, "Show two facing pages")
	pf.Bool("prefetch", true, "Paginate neighbouring chapters in the background")

	root.AddCommand(newReadCmd(), newInfoCmd(), newPagesCmd(), newCoverCmd())
	return root
}

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <book.epub>",
		Short: "Read a book in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			cfg := opts.Config
			s, err := session.Open(opts.InputPath, session.Options{
				Layout:   shell.TerminalLayout(shell.PageViewport(80, 24, cfg.Spread)),
				Spread:   cfg.Spread,
				Prefetch: cfg.Prefetch,
				Logger:   opts.Logger,
			})
			if err != nil {
				return err
			}
			defer s.Close()

			md, err := s.Metadata()
			if err != nil {
				return err
			}
			title := md.Title
			if title == "" {
				title = filepath.Base(opts.InputPath)
			}
			_, err = tea.NewProgram(shell.New(s, title, cfg.Spread), tea.WithAltScreen()).Run()
			return err
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <book.epub>",
		Short: "Print book metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			s, err := session.Open(opts.InputPath, session.Options{Layout: opts.Config.FlowLayout(), Logger: opts.Logger})
			if err != nil {
				return err
			}
			defer s.Close()
			return printInfo(cmd.OutOrStdout(), s)
		},
	}
}

func printInfo(w io.Writer, s *session.Session) error {
	md, err := s.Metadata()
	if err != nil {
		return err
	}
	n, err := s.NChapters()
	if err != nil {
		return err
	}

	var creators []string
	for _, c := range md.Creators {
		if c.Role != "" {
			creators = append(creators, fmt.Sprintf("%s (%s)", c.Name, c.Role))
		} else {
			creators = append(creators, c.Name)
		}
	}

	fmt.Fprintf(w, "Title:      %s\n", md.Title)
	fmt.Fprintf(w, "Creator:    %s\n", strings.Join(creators, ", "))
	fmt.Fprintf(w, "Language:   %s\n", md.Language)
	fmt.Fprintf(w, "Identifier: %s\n", md.Identifier)
	if md.Publisher != "" {
		fmt.Fprintf(w, "Publisher:  %s\n", md.Publisher)
	}
	if md.Date != "" {
		fmt.Fprintf(w, "Date:       %s\n", md.Date)
	}
	fmt.Fprintf(w, "Chapters:   %d\n", n)
	if md.Description != "" {
		fmt.Fprintf(w, "\n%s\n", wordwrap.String(md.Description, infoWrapWidth))
	}
	return nil
}

func newPagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages <book.epub>",
		Short: "Paginate a book and print page counts per chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			s, err := session.Open(opts.InputPath, session.Options{Layout: opts.Config.FlowLayout(), Logger: opts.Logger})
			if err != nil {
				return err
			}
			defer s.Close()
			return printPages(cmd.OutOrStdout(), s)
		},
	}
}

func printPages(w io.Writer, s *session.Session) error {
	chapters, err := s.Chapters()
	if err != nil {
		return err
	}
	total := 0
	for _, ch := range chapters {
		n, err := s.PagesIn(ch.Index)
		if err != nil {
			return err
		}
		total += n
		note := ""
		if s.Degraded(ch.Index) != nil {
			note = "  (placeholder)"
		}
		fmt.Fprintf(w, "%4d %6d  %s%s\n", ch.Index, n, ch.Href, note)
	}
	fmt.Fprintf(w, "total %d pages in %d chapters\n", total, len(chapters))
	return nil
}

func newCoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cover <book.epub>",
		Short: "Write the cover image as a thumbnail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			size, _ := cmd.Flags().GetInt("size")
			if size <= 0 {
				return fmt.Errorf("--size must be positive, got %d", size)
			}
			if output == "" {
				output = defaultCoverPath(opts.InputPath)
			}

			s, err := session.Open(opts.InputPath, session.Options{Layout: opts.Config.FlowLayout(), Logger: opts.Logger})
			if err != nil {
				return err
			}
			defer s.Close()

			img, err := s.Cover(size, size)
			if err != nil {
				return err
			}
			if err := imaging.Save(img, output); err != nil {
				return fmt.Errorf("failed to write cover: %w", err)
			}
			opts.Logger.Info("wrote cover", "output", output, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output image path (default: <input>-cover.png)")
	cmd.Flags().Int("size", defaultCoverSize, "Maximum thumbnail width and height")
	return cmd
}

func defaultCoverPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + "-cover.png"
}

// readCLIOptions resolves the configuration file and flag overrides.
func readCLIOptions(cmd *cobra.Command, args []string) (*cliOptions, error) {
	flags := cmd.Flags()

	cfg := config.Default()
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	intFlags := map[string]*int{
		"width":     &cfg.Layout.Width,
		"height":    &cfg.Layout.Height,
		"font-size": &cfg.Layout.FontSize,
		"margin":    &cfg.Layout.Margin,
	}
	for name, dst := range intFlags {
		if flags.Changed(name) {
			v, _ := flags.GetInt(name)
			if v < 0 || (v == 0 && name != "margin") {
				return nil, fmt.Errorf("--%s must be positive, got %d", name, v)
			}
			*dst = v
		}
	}
	if flags.Changed("line-height") {
		v, _ := flags.GetFloat64("line-height")
		if v <= 0 {
			return nil, fmt.Errorf("--line-height must be positive, got %v", v)
		}
		cfg.Layout.LineHeight = v
	}
	if flags.Changed("spread") {
		cfg.Spread, _ = flags.GetBool("spread")
	}
	if flags.Changed("prefetch") {
		cfg.Prefetch, _ = flags.GetBool("prefetch")
	}

	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		if !isValidLogLevel(level) {
			return nil, fmt.Errorf("--log-level must be one of debug, info, warn, error, got %q", level)
		}
		cfg.Log.Level = level
	}
	if flags.Changed("log-format") {
		format, _ := flags.GetString("log-format")
		if !isValidLogFormat(format) {
			return nil, fmt.Errorf("--log-format must be text or json, got %q", format)
		}
		cfg.Log.Format = format
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	opts := &cliOptions{
		Config: cfg,
		Logger: buildLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format),
	}
	if len(args) > 0 {
		opts.InputPath = args[0]
	}
	return opts, nil
}

func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func isValidLogFormat(format string) bool {
	switch strings.ToLower(format) {
	case "text", "json":
		return true
	}
	return false
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
