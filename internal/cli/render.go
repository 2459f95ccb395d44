package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ByLCY/galley/binding"
	"github.com/ByLCY/galley/compose"
	"github.com/ByLCY/galley/config"
	"github.com/ByLCY/galley/dsl"
	"github.com/ByLCY/galley/fonts"
	"github.com/ByLCY/galley/layout"
	"github.com/ByLCY/galley/renderer"
	canvasrenderer "github.com/ByLCY/galley/renderer/canvas"
	"github.com/ByLCY/galley/renderer/raster"
)

// renderOpts holds the flags of the render command.
type renderOpts struct {
	output     string  // output file; derived from the input name when empty
	format     string  // pdf or png
	data       string  // JSON data file for ${...} placeholders
	debug      string  // path of the JSON debug dump
	scale      float64 // png pixels per point
	concurrent bool    // lay out columns and table cells concurrently
	split      bool    // png: one file per page
	strict     bool    // fail on unresolved placeholders or layout issues
}

func newRenderCmd(g *globalOpts) *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Lay out a document and write PDF or PNG output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context(), g)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("format") {
				cfg.Output.Format = strings.ToLower(opts.format)
			}
			if flags.Changed("scale") {
				cfg.Output.Scale = opts.scale
			}
			if flags.Changed("concurrent") {
				cfg.Layout.Concurrent = opts.concurrent
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runRender(cmd.Context(), args[0], cfg, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: input name with the format extension)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", config.FormatPDF, "output format: pdf, png")
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "JSON data file for ${data.*} placeholders")
	cmd.Flags().StringVar(&opts.debug, "debug", "", "write paginated render nodes and issues as JSON")
	cmd.Flags().Float64Var(&opts.scale, "scale", 2, "png pixels per point")
	cmd.Flags().BoolVar(&opts.concurrent, "concurrent", false, "lay out columns and table cells concurrently")
	cmd.Flags().BoolVar(&opts.split, "split", false, "png: write one file per page")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail on unresolved placeholders or layout issues")

	return cmd
}

// loadConfig reads the --config file and applies its log level unless --verbose is set.
func loadConfig(ctx context.Context, g *globalOpts) (config.Config, error) {
	cfg, err := config.Load(g.config)
	if err != nil {
		return cfg, err
	}
	if !g.verbose {
		loggerFromContext(ctx).SetLevel(parseLevel(cfg.Log.Level))
	}
	return cfg, nil
}

// outputPath derives the output file from the input name when output is empty.
func outputPath(output, input, format string) string {
	if output != "" {
		return output
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + "." + format
}

// pagePath inserts the 1-based page number before the extension.
func pagePath(path string, page int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), page, ext)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	return nil
}

// layoutFile parses input, loads data and fonts, and runs the layout.
func layoutFile(ctx context.Context, input, dataPath string, cfg config.Config) (*layout.Document, *compose.Plan, *fonts.Registry, error) {
	logger := loggerFromContext(ctx)

	doc, err := dsl.ParseFile(input)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Debugf("Parsed %s: %d sections", input, len(doc.Sections))

	var data any
	if dataPath != "" {
		if data, err = binding.LoadFile(dataPath); err != nil {
			return nil, nil, nil, err
		}
		logger.Debugf("Loaded data %s", dataPath)
	}

	reg := fonts.NewRegistry(cfg.FontDir(filepath.Dir(input)))
	if src := cfg.Fonts.Fallback; src != "" {
		if !fonts.IsBuiltin(src) {
			src = cfg.Resolve(src)
		}
		if err := reg.Register(compose.DefaultFontName, src); err != nil {
			return nil, nil, nil, fmt.Errorf("登记回退字体失败: %w", err)
		}
	}

	hyphenator, err := cfg.Hyphenator()
	if err != nil {
		return nil, nil, nil, err
	}
	opts := compose.DefaultOptions()
	opts.Breaking = cfg.Breaking()
	opts.Spacing = cfg.Layout.Spacing
	opts.Hyphenator = hyphenator
	opts.Concurrent = cfg.Layout.Concurrent

	out, plan, err := compose.Build(doc, data, reg, opts)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Debugf("Laid out %d flow layers on %.0fx%.0fpt pages", len(plan.Jobs), plan.Format.Width, plan.Format.Height)
	return out, plan, reg, nil
}

// logIssues reports unresolved placeholders and layout issues; it returns an error in strict mode.
func logIssues(ctx context.Context, out *layout.Document, plan *compose.Plan, strict bool) error {
	logger := loggerFromContext(ctx)
	for _, p := range plan.Missing {
		logger.Warn("Unresolved placeholder", "path", p)
	}
	r := out.Report
	if r.Degraded > 0 {
		logger.Warn("Paragraphs needed forced line breaks", "count", r.Degraded)
	}
	if r.Overflow > 0 {
		logger.Warn("Lines did not fit into the available regions", "count", r.Overflow)
	}
	for _, msg := range r.Messages() {
		logger.Debug(msg)
	}
	if !strict {
		return nil
	}
	var errs []error
	if len(plan.Missing) > 0 {
		errs = append(errs, fmt.Errorf("存在无法解析的占位符: %s", strings.Join(plan.Missing, ", ")))
	}
	if err := r.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func runRender(ctx context.Context, input string, cfg config.Config, opts *renderOpts) error {
	logger := loggerFromContext(ctx)
	logger.Infof("Rendering %s", input)
	prog := newProgress(logger)

	out, plan, reg, err := layoutFile(ctx, input, opts.data, cfg)
	if err != nil {
		return err
	}
	if err := logIssues(ctx, out, plan, opts.strict); err != nil {
		return err
	}
	if opts.debug != "" {
		if err := ensureDir(opts.debug); err != nil {
			return err
		}
		if err := layout.WriteDebugJSON(out, opts.debug); err != nil {
			return fmt.Errorf("输出调试 JSON 失败: %w", err)
		}
		logger.Infof("Wrote debug dump %s", opts.debug)
	}

	path := outputPath(opts.output, input, cfg.Output.Format)
	if err := ensureDir(path); err != nil {
		return err
	}
	if cfg.Output.Format == config.FormatPNG && opts.split {
		pages, err := raster.NewRenderer(reg, cfg.Output.Scale).RenderPages(out)
		if err != nil {
			return err
		}
		for i, data := range pages {
			if err := os.WriteFile(pagePath(path, i+1), data, 0o644); err != nil {
				return fmt.Errorf("写入输出文件失败: %w", err)
			}
		}
		prog.done(fmt.Sprintf("Wrote %d pages to %s", len(pages), pagePath(path, 1)))
		return nil
	}

	var sink renderer.Renderer
	switch cfg.Output.Format {
	case config.FormatPNG:
		sink = raster.NewRenderer(reg, cfg.Output.Scale)
	default:
		sink = canvasrenderer.NewRenderer(reg)
	}
	data, err := sink.Render(out)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入输出文件失败: %w", err)
	}
	prog.done(fmt.Sprintf("Wrote %s (%d pages)", path, len(out.Pages)))
	return nil
}
