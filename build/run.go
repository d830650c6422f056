// Package build implements "build" command: it gathers stylesheets, runs a
// single sprite batch over them and writes the results.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"spriter/config"
	"spriter/css"
	"spriter/packer"
	"spriter/spriter"
	"spriter/state"
	"spriter/utils/debug"
)

func Run(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("build")

	if cmd.Args().Len() == 0 {
		return errors.New("no input stylesheets have been specified")
	}

	cfg := &env.Cfg.Sprites
	if s := cmd.String("to-css"); s != "" {
		cfg.CSSOutputDir = s
	}
	if s := cmd.String("to-sprites"); s != "" {
		cfg.SpriteSheetDir = s
	}
	if cmd.IsSet("prefix") {
		cfg.SpriteSheetCSSPrefix = cmd.String("prefix")
	}
	if s := cmd.String("root"); s != "" {
		cfg.CSSRoot = s
	}
	env.Strict = cmd.Bool("strict")

	sources, err := collect(ctx, cmd.Args().Slice(), log)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New("no stylesheets found in specified sources")
	}

	log.Info("Processing starting",
		zap.Int("stylesheets", len(sources)),
		zap.String("css", cfg.CSSOutputDir),
		zap.String("sprites", cfg.SpriteSheetDir),
		zap.Stringer("mode", cfg.IncludeMode))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	res, err := process(ctx, sources, Options(cfg, env.Strict), env.Log)
	if err != nil {
		return err
	}
	storeResult(env.Rpt, res)

	if len(res.Diagnostics) > 0 {
		log.Warn("Some images were not consolidated", zap.Int("problems", len(res.Diagnostics)))
	}
	return nil
}

// Options converts configuration to batch options. Strict mode turns
// tolerated problems into errors.
func Options(cfg *config.SpritesConfig, strict bool) spriter.Options {
	return spriter.Options{
		IncludeMode:          cfg.IncludeMode,
		SpriteSheetDir:       cfg.SpriteSheetDir,
		SpriteSheetCSSPrefix: cfg.SpriteSheetCSSPrefix,
		CSSOutputDir:         cfg.CSSOutputDir,
		CSSRoot:              cfg.CSSRoot,
		WebRoot:              cfg.WebRoot,
		VerifyImagesExist:    cfg.VerifyImagesExist,
		Silent:               cfg.Silent && !strict,
		PackingOptions:       cfg.Packing,
		OutputIndent:         cfg.OutputIndent,
		TransliterateNames:   cfg.TransliterateNames,
		Workers:              cfg.Workers,
	}
}

// process reads sources and runs a batch over them independently of CLI
// framework.
func process(ctx context.Context, sources []string, opts spriter.Options, log *zap.Logger) (*spriter.Result, error) {
	batch := spriter.NewBatch(opts, spriter.Collaborators{
		Parser: css.NewParser(log),
		Packer: packer.New(log),
		FS:     spriter.OSFS{},
	}, log)

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("unable to read stylesheet: %w", err)
		}
		if err := batch.Add(src, data); err != nil {
			return nil, err
		}
	}
	return batch.Run(ctx)
}

// collect expands sources into list of stylesheet files. Directories are
// walked recursively picking up *.css files, symbolic links are not followed.
func collect(ctx context.Context, sources []string, log *zap.Logger) ([]string, error) {
	var (
		files []string
		seen  = make(map[string]bool)
	)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, src := range sources {
		src, err := filepath.Abs(src)
		if err != nil {
			return nil, err
		}
		fi, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("input source was not found: %w", err)
		}
		if !fi.IsDir() {
			add(src)
			continue
		}

		count := 0
		err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ".css") {
				add(path)
				count++
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("unable to walk directory %s: %w", src, err)
		}
		log.Debug("Directory processed", zap.String("dir", src), zap.Int("stylesheets", count))
	}
	return files, nil
}

// storeResult puts batch outputs into debug report.
func storeResult(rpt *config.Report, res *spriter.Result) {
	if rpt == nil {
		return
	}
	rpt.StoreData("batch.txt", []byte(describe(res)))
	for i, s := range res.Stylesheets {
		rpt.StoreData(fmt.Sprintf("css/%03d-%s", i, filepath.Base(s.Source)), s.Text)
	}
	for i, s := range res.Sheets {
		rpt.StoreData(fmt.Sprintf("sprites/%03d-%s", i, s.File), s.Image)
	}
	if len(res.Diagnostics) > 0 {
		var sb strings.Builder
		for _, d := range res.Diagnostics {
			sb.WriteString(d.Error())
			sb.WriteByte('\n')
		}
		rpt.StoreData("diagnostics.txt", []byte(sb.String()))
	}
}

// describe renders outline of the batch result.
func describe(res *spriter.Result) string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "batch %s", res.ID)

	tw.Line(1, "sheets: %d", len(res.Sheets))
	for _, s := range res.Sheets {
		tw.Line(2, "%s (%dx%d)", s.Key, s.Width, s.Height)
		tw.Attr(3, "url", s.URL)
		tw.Attr(3, "destination", s.Destination)
		for _, m := range s.Members {
			r := s.Coordinates[m]
			tw.Line(3, "%s at %d,%d size %dx%d", m, r.X, r.Y, r.Width, r.Height)
		}
	}

	tw.Line(1, "stylesheets: %d", len(res.Stylesheets))
	for _, s := range res.Stylesheets {
		tw.Line(2, "%s", s.Source)
		tw.Attr(3, "destination", s.Destination)
		tw.Attr(3, "changed", s.Changed)
	}

	if len(res.Diagnostics) > 0 {
		tw.Line(1, "diagnostics: %d", len(res.Diagnostics))
		for _, d := range res.Diagnostics {
			tw.Line(2, "%v", d)
		}
	}
	return tw.String()
}
