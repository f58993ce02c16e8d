package narrative

import (
	"github.com/ernie/crewvoice/internal/config"
	"github.com/ernie/crewvoice/internal/domain"
)

// Glyphs renders player colors and event markers. Colors maps color codes
// (base color plus badge offsets) to a glyph, typically a custom emoji.
type Glyphs struct {
	Colors    map[int]string
	Kill      string
	Report    string
	Emergency string
	Done      string
}

// DefaultGlyphs renders colors by name and events with stock emoji
func DefaultGlyphs() Glyphs {
	return Glyphs{
		Kill:      "🔪",
		Report:    "📢",
		Emergency: "🚨",
		Done:      "✅",
	}
}

// GlyphsFromConfig overlays configured glyphs on the defaults
func GlyphsFromConfig(cfg config.NarrativeConfig) Glyphs {
	g := DefaultGlyphs()
	g.Colors = cfg.Glyphs
	if cfg.Kill != "" {
		g.Kill = cfg.Kill
	}
	if cfg.Report != "" {
		g.Report = cfg.Report
	}
	if cfg.Emergency != "" {
		g.Emergency = cfg.Emergency
	}
	if cfg.Done != "" {
		g.Done = cfg.Done
	}
	return g
}

// Badge renders a player color with its impostor and ghost badges
func (g Glyphs) Badge(color int, impostor, ghost bool) string {
	if !domain.ValidColor(color) {
		return "?"
	}
	code := color
	if impostor {
		code += domain.ImpostorOffset
	}
	if ghost {
		code += domain.GhostOffset
	}
	if s, ok := g.Colors[code]; ok {
		return s
	}
	if impostor && ghost {
		if s, ok := g.Colors[color+domain.GhostOffset]; ok {
			return s
		}
	}
	if len(g.Colors) > 0 {
		if s, ok := g.Colors[color]; ok {
			return s
		}
	}
	return textBadge(color, impostor, ghost)
}

func textBadge(color int, impostor, ghost bool) string {
	s := domain.ColorNames[color]
	switch {
	case impostor && ghost:
		s += " (Imp, Body)"
	case impostor:
		s += " (Imp)"
	case ghost:
		s += " (Body)"
	}
	return s
}
