package pipeline

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/internal/jobs"
)

// Render turns the composed slide definitions into a self-contained HTML
// deck and uploads it to blob storage. The storage key of the uploaded
// deck becomes the job result.
func Render(rt *Runtime) func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
	return func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
		slides, err := decode[[]SlideDefinition](snapshot.Data, KeySlides)
		if err != nil {
			return nil, err
		}
		if len(slides) == 0 {
			return nil, faults.New(faults.KindTemplate, "no slides to render")
		}

		html, err := renderDeck(slides)
		if err != nil {
			return nil, err
		}

		key := fmt.Sprintf("decks/%s.html", snapshot.ID)
		if err := rt.Storage.Upload(ctx, key, strings.NewReader(html), "text/html"); err != nil {
			return nil, faults.Wrap(faults.KindBackendConnection, "upload deck", err)
		}

		rt.Logger.InfoContext(
			ctx, "render complete",
			"job_id", snapshot.ID, "slides", len(slides), "key", key,
		)

		return &jobs.Patch{Progress: 100, Result: key}, nil
	}
}

type deckContext struct {
	Title  string
	Slides []SlideDefinition
}

var deckTemplate = template.Must(
	template.New("deck").Funcs(template.FuncMap{
		"lines": splitLines,
	}).Parse(deckHTML),
)

func renderDeck(slides []SlideDefinition) (string, error) {
	deck := deckContext{Slides: slides}
	if slides[0].Type == SlideCover {
		deck.Title = slides[0].Title
	}

	var b strings.Builder
	if err := deckTemplate.Execute(&b, deck); err != nil {
		return "", faults.Wrap(faults.KindTemplate, "execute deck template", err)
	}

	return b.String(), nil
}

// splitLines breaks a list element into its items, stripping bullet and
// enumeration prefixes left over from extraction.
func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		for _, prefix := range []string{"- ", "• ", "* "} {
			if strings.HasPrefix(trimmed, prefix) {
				trimmed = strings.TrimSpace(trimmed[len(prefix):])
				break
			}
		}

		lines = append(lines, trimmed)
	}
	return lines
}

const deckHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { margin: 0; font-family: "Helvetica Neue", Arial, sans-serif; background: #1a1a2e; }
  .slide { box-sizing: border-box; width: 100vw; height: 100vh; padding: 6vh 8vw; background: #fff; page-break-after: always; overflow: hidden; }
  .slide.cover, .slide.divider { display: flex; flex-direction: column; justify-content: center; background: #16213e; color: #fff; }
  .slide.cover h1 { font-size: 3em; margin: 0; }
  .slide.cover h2 { font-weight: 300; color: #a8b2d1; }
  .slide h1 { font-size: 2em; color: #16213e; border-bottom: 3px solid #0f3460; padding-bottom: 0.3em; }
  .slide.cover h1, .slide.divider h1 { color: #fff; border: none; }
  .slide ul { font-size: 1.2em; line-height: 1.8; }
  .slide p { font-size: 1.15em; line-height: 1.6; }
  .slide blockquote { border-left: 4px solid #0f3460; margin-left: 0; padding-left: 1em; color: #555; }
  .slide pre { background: #f4f4f4; padding: 1em; overflow-x: auto; }
  .toc-entry { font-size: 1.3em; line-height: 2; }
</style>
</head>
<body>
{{- range .Slides}}
<section class="slide {{.Type}}">
  {{- if .Title}}
  <h1>{{.Title}}</h1>
  {{- end}}
  {{- if .Subtitle}}
  <h2>{{.Subtitle}}</h2>
  {{- end}}
  {{- range .Elements}}
  {{- if eq .Type "list"}}
  <ul>
    {{- range lines .Content}}
    <li>{{.}}</li>
    {{- end}}
  </ul>
  {{- else if eq .Type "quote"}}
  <blockquote>{{.Content}}</blockquote>
  {{- else if eq .Type "code"}}
  <pre><code>{{.Content}}</code></pre>
  {{- else if eq .Type "toc-entry"}}
  <div class="toc-entry">{{.Content}}</div>
  {{- else}}
  <p>{{.Content}}</p>
  {{- end}}
  {{- end}}
</section>
{{- end}}
</body>
</html>
`
