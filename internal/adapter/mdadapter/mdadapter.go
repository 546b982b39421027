package mdadapter

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jgivc/csclient/internal/entity"
	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

const (
	FormatText = "text"
	FormatHTML = "html"

	frontmatterDelimiter = "---\n"
)

// Frontmatter is the optional YAML header of a message file.
type Frontmatter struct {
	Subject  string `yaml:"subject"`
	Language string `yaml:"language"`
	Format   string `yaml:"format"`
}

/*
mdAdapter reads notification messages from markdown files:

	---
	subject: Quarterly report
	language: en
	format: html
	---
	# Report
	Please find the files attached.

Without a subject in the header the first level one heading is used. The body is
sent as written unless format is html.
*/
type mdAdapter struct {
	fs  afero.Fs
	md  goldmark.Markdown
	log *slog.Logger
}

func NewMDAdapter(log *slog.Logger) *mdAdapter {
	return NewMDAdapterWithFS(afero.NewOsFs(), log)
}

func NewMDAdapterWithFS(fs afero.Fs, log *slog.Logger) *mdAdapter {
	return &mdAdapter{
		fs: fs,
		md: goldmark.New(
			goldmark.WithExtensions(
				&frontmatter.Extender{},
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithXHTML(),
			),
		),
		log: log.With(slog.String("item", "MDAdapter")),
	}
}

func (a *mdAdapter) Load(path string) (*entity.NotificationMessage, error) {
	content, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, fmt.Errorf("cannot read message file %s: %w", path, err)
	}

	msg, err := a.Parse(content)
	if err != nil {
		a.log.Error("Cannot parse message file", slog.String("path", path), slog.Any("error", err))

		return nil, fmt.Errorf("cannot parse message file %s: %w", path, err)
	}

	return msg, nil
}

func (a *mdAdapter) Parse(content []byte) (*entity.NotificationMessage, error) {
	pc := parser.NewContext()
	doc := a.md.Parser().Parse(text.NewReader(content), parser.WithContext(pc))

	var fm Frontmatter
	if data := frontmatter.Get(pc); data != nil {
		if err := data.Decode(&fm); err != nil {
			return nil, fmt.Errorf("cannot decode frontmatter: %w", err)
		}
	}

	msg := &entity.NotificationMessage{
		Subject:  strings.TrimSpace(fm.Subject),
		Language: strings.ToLower(strings.TrimSpace(fm.Language)),
	}

	if msg.Subject == "" {
		msg.Subject = firstHeading(doc, content)
	}

	switch strings.ToLower(fm.Format) {
	case "", FormatText:
		msg.Body = strings.TrimSpace(string(stripFrontmatter(content)))
	case FormatHTML:
		var buf bytes.Buffer
		if err := a.md.Renderer().Render(&buf, content, doc); err != nil {
			return nil, fmt.Errorf("cannot render markdown: %w", err)
		}

		msg.Body = strings.TrimSpace(buf.String())
	default:
		return nil, fmt.Errorf("unknown message format %q", fm.Format)
	}

	return msg, nil
}

func firstHeading(doc ast.Node, source []byte) string {
	var title string

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 1 {
			return ast.WalkContinue, nil
		}

		var b strings.Builder
		for c := heading.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				b.Write(t.Segment.Value(source))
			}
		}
		title = strings.TrimSpace(b.String())

		return ast.WalkStop, nil
	})

	return title
}

func stripFrontmatter(content []byte) []byte {
	str := string(content)
	if !strings.HasPrefix(str, frontmatterDelimiter) {
		return content
	}

	parts := strings.SplitN(str, frontmatterDelimiter, 3)
	if len(parts) < 3 {
		return content
	}

	return []byte(parts[2])
}
