package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"gorm-sluggable/pkg/config"
	"gorm-sluggable/pkg/sluggable"
	"gorm-sluggable/pkg/types"
)

// Options contains command-line configuration options for the slug preview.
type Options struct {
	ConfigPath string
	Model      string
	Field      string
	Separator  string
	Style      string
	Locale     string
	MaxLength  int
	Watch      bool
	Texts      []string
}

// NewOptions parses command-line flags and returns a new Options instance.
func NewOptions(args []string) (*Options, error) {
	opts := &Options{}
	fs := flag.NewFlagSet("slugify", flag.ContinueOnError)
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to a slug config file")
	fs.StringVar(&opts.Model, "model", "", "Model whose slug config is used (requires --config)")
	fs.StringVar(&opts.Field, "field", "Slug", "Slug field of the model")
	fs.StringVar(&opts.Separator, "separator", "", "Separator, when no config file is given")
	fs.StringVar(&opts.Style, "style", "", "Style (none, lower, upper, camel), when no config file is given")
	fs.StringVar(&opts.Locale, "locale", "und", "BCP 47 language tag for transliteration and case folding")
	fs.IntVar(&opts.MaxLength, "max-length", 0, "Maximum slug length, 0 for none")
	fs.BoolVar(&opts.Watch, "watch", false, "Render again whenever the config file changes")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.Texts = fs.Args()
	return opts, nil
}

// Validate checks that all required options are provided and valid.
func (o *Options) Validate() error {
	if o.Model != "" && o.ConfigPath == "" {
		return errors.New("--model requires --config")
	}
	if o.ConfigPath != "" && o.Model == "" {
		return errors.New("--config requires --model")
	}
	if o.Watch && o.ConfigPath == "" {
		return errors.New("--watch requires --config")
	}
	if o.MaxLength < 0 {
		return errors.New("--max-length must not be negative")
	}
	if !types.Style(o.Style).IsValid() {
		return fmt.Errorf("unknown style %q", o.Style)
	}
	if _, err := language.Parse(o.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", o.Locale, err)
	}
	return nil
}

// slugConfig returns the slug config the preview renders with.
func (o *Options) slugConfig(cfg *types.Config) (types.SlugConfig, error) {
	if cfg == nil {
		return types.SlugConfig{Slug: o.Field, Separator: o.Separator, Style: types.Style(o.Style), MaxLength: o.MaxLength}, nil
	}
	model := cfg.GetModel(o.Model)
	if model == nil {
		return types.SlugConfig{}, fmt.Errorf("model %s is not configured", o.Model)
	}
	slug := model.GetSlug(o.Field)
	if slug == nil {
		return types.SlugConfig{}, fmt.Errorf("model %s has no slug field %s", o.Model, o.Field)
	}
	out := *slug
	if o.MaxLength > 0 {
		out.MaxLength = o.MaxLength
	}
	return out, nil
}

// render writes one "text => slug" line per text.
func render(w io.Writer, listener *sluggable.Listener, slugCfg types.SlugConfig, texts []string) error {
	for _, text := range texts {
		slug, err := listener.Compose(text, slugCfg, slugCfg.MaxLength)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s => %s\n", text, slug)
	}
	return nil
}

func readTexts(r io.Reader) ([]string, error) {
	var texts []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	return texts, scanner.Err()
}

func setupLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}

func main() {
	log := setupLogger()
	opts, err := NewOptions(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if err := opts.Validate(); err != nil {
		log.WithField("error", err).Fatal("Invalid command-line options")
	}

	texts := opts.Texts
	if len(texts) == 0 {
		if texts, err = readTexts(os.Stdin); err != nil {
			log.WithField("error", err).Fatal("Failed to read input")
		}
	}

	listener := sluggable.NewListener(nil, log, sluggable.WithLocale(language.MustParse(opts.Locale)))

	if opts.ConfigPath == "" {
		slugCfg, _ := opts.slugConfig(nil)
		if err := render(os.Stdout, listener, slugCfg, texts); err != nil {
			log.WithField("error", err).Fatal("Failed to render slugs")
		}
		return
	}

	manager, err := config.NewManager(opts.ConfigPath, config.LoadConfig, log, config.DefaultDebounceDelay)
	if err != nil {
		log.WithFields(logrus.Fields{
			"config_path": opts.ConfigPath,
			"error":       err,
		}).Fatal("Failed to load config")
	}
	defer manager.Close()

	renderWith := func(cfg *types.Config) {
		slugCfg, err := opts.slugConfig(cfg)
		if err == nil {
			err = render(os.Stdout, listener, slugCfg, texts)
		}
		if err != nil {
			log.WithField("error", err).Error("Failed to render slugs")
		}
	}
	renderWith(manager.Get())
	if !opts.Watch {
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	manager.OnUpdate(renderWith)
	if err := manager.Watch(ctx); err != nil {
		log.WithField("error", err).Fatal("Failed to watch config file")
	}
	log.WithField("config_path", opts.ConfigPath).Info("Watching config file")
	<-ctx.Done()
}
