package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Window dimensions every applet opens with.
const (
	WindowWidth  = 420
	WindowHeight = 625
)

const (
	// DefaultAuthor is the createdBy value when none is configured.
	DefaultAuthor = "ryo"

	// DefaultIcon is used when no keyword matches the file name.
	DefaultIcon = "📄"

	untitled  = "Untitled"
	sourceExt = ".html"
)

// iconRules are checked in order against the lower-cased file name.
var iconRules = []struct {
	keyword string
	icon    string
}{
	{"simcity", "🏙️"},
	{"city", "🏙️"},
	{"game", "🎮"},
	{"calculator", "🔢"},
	{"clock", "⏰"},
	{"calendar", "📅"},
	{"todo", "✅"},
	{"notes", "📝"},
	{"chat", "💬"},
	{"weather", "🌤️"},
}

// fixed holds hand-written manifests for specific source files.
var fixed = map[string]struct{ title, icon string }{
	"AI SimCity.html": {title: "AI SimCity", icon: "🏙️"},
}

// Manifest is the published description of one applet.
type Manifest struct {
	Content      string `json:"content"`
	Title        string `json:"title"`
	Icon         string `json:"icon"`
	Name         string `json:"name"`
	WindowWidth  int    `json:"windowWidth"`
	WindowHeight int    `json:"windowHeight"`
	CreatedAt    int64  `json:"createdAt"`
	CreatedBy    string `json:"createdBy"`
	UpdatedAt    int64  `json:"updatedAt"`
	Featured     bool   `json:"featured"`
}

// Options configures [Build].
type Options struct {
	// Author is written as createdBy. Defaults to [DefaultAuthor].
	Author string

	// Concurrency bounds how many files are processed at once.
	// Defaults to the number of CPUs.
	Concurrency int

	// Clock stamps createdAt and updatedAt. Defaults to the real clock.
	Clock clockwork.Clock

	// Logger receives per-file progress. Defaults to slog.Default.
	Logger *slog.Logger
}

// Result describes one generated manifest.
type Result struct {
	Source string
	Output string
	Title  string
	Icon   string
}

// Build writes a manifest to distDir for every HTML file directly inside
// srcDir. Results are returned in directory order.
func Build(ctx context.Context, srcDir, distDir string, opts Options) ([]Result, error) {
	if opts.Author == "" {
		opts.Author = DefaultAuthor
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == sourceExt {
			files = append(files, e.Name())
		}
	}
	opts.Logger.Info("building applets", "source", srcDir, "files", len(files))

	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	results := make([]Result, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := buildOne(srcDir, distDir, file, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			opts.Logger.Info("generated manifest", "source", file, "output", res.Output)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func buildOne(srcDir, distDir, file string, opts Options) (Result, error) {
	content, err := os.ReadFile(filepath.Join(srcDir, file))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read: %w", err)
	}

	m, err := New(file, content, opts.Author, opts.Clock.Now())
	if err != nil {
		return Result{}, err
	}

	data, err := Marshal(m)
	if err != nil {
		return Result{}, err
	}

	out := filepath.Join(distDir, strings.TrimSuffix(file, sourceExt)+".json")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("failed to write: %w", err)
	}
	return Result{Source: file, Output: out, Title: m.Title, Icon: m.Icon}, nil
}

// New builds the manifest for the source file named file.
func New(file string, content []byte, author string, now time.Time) (Manifest, error) {
	base := strings.TrimSuffix(file, sourceExt)
	ts := now.UnixMilli()

	m := Manifest{
		Content:      string(content),
		Name:         base + ".app",
		WindowWidth:  WindowWidth,
		WindowHeight: WindowHeight,
		CreatedAt:    ts,
		CreatedBy:    author,
		UpdatedAt:    ts,
		Featured:     true,
	}

	if f, ok := fixed[file]; ok {
		m.Title = f.title
		m.Icon = f.icon
		return m, nil
	}

	title, err := Title(content)
	if err != nil {
		return Manifest{}, err
	}
	if title == "" {
		title = base
	}
	m.Title = title
	m.Icon = Icon(file)
	return m, nil
}

// Title returns the document's <title> text, else the text of its first
// <h1>, else "Untitled". A present but empty <title> yields "".
func Title(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	if t := doc.Find("title").First(); t.Length() > 0 {
		return strings.TrimSpace(t.Text()), nil
	}
	if h := doc.Find("h1").First(); h.Length() > 0 {
		if text := strings.TrimSpace(h.Text()); text != "" {
			return text, nil
		}
	}
	return untitled, nil
}

// Icon picks an emoji from keywords in the file name.
func Icon(file string) string {
	lower := strings.ToLower(file)
	for _, r := range iconRules {
		if strings.Contains(lower, r.keyword) {
			return r.icon
		}
	}
	return DefaultIcon
}

// Marshal renders m as indented JSON without HTML escaping, so the applet
// content stays readable.
func Marshal(m Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}
