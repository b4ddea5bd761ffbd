package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"gorm-sluggable/pkg/config"
	"gorm-sluggable/pkg/sluggable"
	"gorm-sluggable/pkg/testhelper"
	"gorm-sluggable/pkg/types"
)

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "plain text", args: []string{"Hello World"}},
		{name: "config and model", args: []string{"--config", "slugs.yaml", "--model", "Article"}},
		{name: "model without config", args: []string{"--model", "Article"}, wantErr: "--model requires --config"},
		{name: "config without model", args: []string{"--config", "slugs.yaml"}, wantErr: "--config requires --model"},
		{name: "watch without config", args: []string{"--watch"}, wantErr: "--watch requires --config"},
		{name: "unknown style", args: []string{"--style", "loud"}, wantErr: `unknown style "loud"`},
		{name: "bad locale", args: []string{"--locale", "not a tag"}, wantErr: "invalid locale"},
		{name: "negative length", args: []string{"--max-length", "-1"}, wantErr: "--max-length must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := NewOptions(tt.args)
			require.NoError(t, err)
			err = opts.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRender(t *testing.T) {
	manager := config.CreateTestConfigManager(&types.Config{Models: []types.ModelConfig{{
		Model: "Article",
		Slugs: []types.SlugConfig{{Slug: "Slug", Fields: []string{"Title"}, Separator: "_", Style: types.StyleUpper, Prefix: "a_"}},
	}}})
	defer manager.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	tests := []struct {
		name    string
		args    []string
		cfg     *types.Config
		locale  language.Tag
		want    string
		wantErr error
	}{
		{
			name: "flags only",
			args: []string{"--style", "camel", "hello world", "Crème brûlée"},
			want: "hello world => Hello-World\nCrème brûlée => Creme-Brulee\n",
		},
		{
			name: "max length",
			args: []string{"--max-length", "5", "hello world"},
			want: "hello world => hello\n",
		},
		{
			name:   "locale folding",
			args:   []string{"Größe über"},
			locale: language.German,
			want:   "Größe über => groesse-ueber\n",
		},
		{
			name: "model config",
			args: []string{"--config", "slugs.yaml", "--model", "Article", "hello world"},
			cfg:  manager.Get(),
			want: "hello world => A_HELLO_WORLD\n",
		},
		{
			name:    "unknown field",
			args:    []string{"--config", "slugs.yaml", "--model", "Article", "--field", "Code", "x"},
			cfg:     manager.Get(),
			wantErr: errorString("model Article has no slug field Code"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := NewOptions(tt.args)
			require.NoError(t, err)
			require.NoError(t, opts.Validate())

			listener := sluggable.NewListener(nil, logger, sluggable.WithLocale(tt.locale))
			slugCfg, err := opts.slugConfig(tt.cfg)
			if diff := cmp.Diff(tt.wantErr, err, testhelper.EquateErrorMessage); diff != "" {
				t.Fatalf("Error mismatch (-want +got):\n%s", diff)
			}
			if err != nil {
				return
			}

			var out bytes.Buffer
			require.NoError(t, render(&out, listener, slugCfg, opts.Texts))
			if diff := cmp.Diff(tt.want, out.String()); diff != "" {
				t.Errorf("Output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadTexts(t *testing.T) {
	texts, err := readTexts(strings.NewReader("first\n\n  second  \n"))
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, texts)
}

type errorString string

func (e errorString) Error() string { return string(e) }
