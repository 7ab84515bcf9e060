// Package widget renders the player markup injected above a post.
package widget

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"regexp"

	"github.com/bobarin/readaloud/internal/models"
)

//go:embed templates/player.html.tmpl
var playerTemplate string

var tmpl = template.Must(template.New("player").Parse(playerTemplate))

var hexColor = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})$`)

// Dark theme colours are fixed; the light theme takes the configured text
// and background colours.
const (
	darkBackground = "#111827"
	darkText       = "#FFFFFF"
	darkBorder     = "#374151"
	lightBorder    = "#E5E7EB"
)

// Palette holds the CSS custom properties for one player.
type Palette struct {
	Primary    string
	Background string
	Text       string
	Border     string
}

// PaletteFor picks colours for a theme. Invalid configured colours fall back
// to the defaults.
func PaletteFor(theme models.Theme, s models.Settings) Palette {
	d := models.DefaultSettings()
	p := Palette{
		Primary:    color(s.PrimaryColor, d.PrimaryColor),
		Background: color(s.BackgroundColor, d.BackgroundColor),
		Text:       color(s.TextColor, d.TextColor),
		Border:     lightBorder,
	}
	if theme == models.ThemeDark {
		p.Background = darkBackground
		p.Text = darkText
		p.Border = darkBorder
	}
	return p
}

func color(v, fallback string) string {
	if hexColor.MatchString(v) {
		return v
	}
	return fallback
}

type rate struct {
	Value    string
	Selected bool
}

// Player is everything the markup needs.
type Player struct {
	PostID   int64
	Service  models.Service
	Voice    string
	Theme    models.Theme
	Label    string
	Endpoint string // API root, e.g. https://blog.example.com/v1
	Nonce    string
	Palette  Palette
}

type view struct {
	Player
	Skips []int
	Rates []rate
}

// Render writes the player markup to w. All values are HTML-escaped.
func Render(w io.Writer, p Player) error {
	v := view{
		Player: p,
		Skips:  []int{-10, 10},
		Rates: []rate{
			{Value: "0.5"}, {Value: "0.75"}, {Value: "1", Selected: true},
			{Value: "1.25"}, {Value: "1.5"}, {Value: "2"},
		},
	}
	if err := tmpl.Execute(w, v); err != nil {
		return fmt.Errorf("failed to render player: %w", err)
	}
	return nil
}

// RenderString is Render into a string.
func RenderString(p Player) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}
