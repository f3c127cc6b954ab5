package marker

import (
	"regexp"
	"strconv"
	"strings"
)

// OptionKind identifies how a connector option token was classified.
type OptionKind int

const (
	OptionType OptionKind = iota
	OptionPlug
	OptionArrows
	OptionTrack
	OptionOpacity
	OptionColor
)

func (k OptionKind) String() string {
	switch k {
	case OptionType:
		return "type"
	case OptionPlug:
		return "plug"
	case OptionArrows:
		return "arrows"
	case OptionTrack:
		return "track"
	case OptionOpacity:
		return "opacity"
	case OptionColor:
		return "color"
	}
	return "unknown"
}

// Path type keywords.
var typeKeywords = map[string]bool{
	"straight": true,
	"arc":      true,
	"fluid":    true,
	"magnet":   true,
	"grid":     true,
}

// Arrowhead (plug) keywords.
var plugKeywords = map[string]bool{
	"behind":    true,
	"disc":      true,
	"square":    true,
	"arrow1":    true,
	"arrow2":    true,
	"arrow3":    true,
	"hand":      true,
	"crosshair": true,
}

const arrowsPrefix = "arrows:"

// Option is one classified connector option token.
type Option struct {
	Kind  OptionKind
	Raw   string
	Int   int     // Track number or arrows value
	Float float64 // Opacity
}

// ClassifyOption matches a token against the option variants in a fixed
// order: type keyword, plug keyword, arrows token, integer track, opacity in
// (0,1). Anything else is a color.
func ClassifyOption(token string) Option {
	tok := strings.TrimSpace(token)
	lower := strings.ToLower(tok)

	if typeKeywords[lower] {
		return Option{Kind: OptionType, Raw: lower}
	}
	if plugKeywords[lower] {
		return Option{Kind: OptionPlug, Raw: lower}
	}
	if strings.HasPrefix(lower, arrowsPrefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(lower, arrowsPrefix)); err == nil && n >= 1 && n <= 4 {
			return Option{Kind: OptionArrows, Raw: lower, Int: n}
		}
	}
	if n, err := strconv.Atoi(tok); err == nil {
		return Option{Kind: OptionTrack, Raw: tok, Int: n}
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil && f > 0 && f < 1 {
		return Option{Kind: OptionOpacity, Raw: tok, Float: f}
	}
	return Option{Kind: OptionColor, Raw: tok}
}

// ConnectorOptions is the folded option list of a connector marker.
type ConnectorOptions struct {
	Type     string  `json:"type,omitempty"`
	Plug     string  `json:"plug,omitempty"`
	Arrows   int     `json:"arrows,omitempty"`
	Track    int     `json:"track"`
	HasTrack bool    `json:"-"`
	Opacity  float64 `json:"opacity,omitempty"`
	Color    string  `json:"color,omitempty"`
}

// Connector is a parsed connector marker: {identifier:label|opt|opt...}.
type Connector struct {
	Identifier string           `json:"identifier"`
	Label      string           `json:"label,omitempty"`
	Options    ConnectorOptions `json:"options"`
	From       int              `json:"from"`
	To         int              `json:"to"`

	// Set when the marker carried a label or only recognized options.
	explicit bool
}

var connectorPattern = regexp.MustCompile(`^\{([^{}|]+)((?:\|[^{}|]*)*)\}$`)

// ParseConnector parses one candidate token starting at offset from.
func ParseConnector(token string, from int) (Connector, bool) {
	m := connectorPattern.FindStringSubmatch(token)
	if m == nil {
		return Connector{}, false
	}

	head := m[1]
	c := Connector{From: from, To: from + len(token)}
	if i := strings.IndexByte(head, ':'); i >= 0 {
		c.Identifier = strings.TrimSpace(head[:i])
		c.Label = strings.TrimSpace(head[i+1:])
		c.explicit = true
	} else {
		c.Identifier = strings.TrimSpace(head)
	}
	if c.Identifier == "" {
		return Connector{}, false
	}

	allKnown := true
	colorSet := false
	for _, raw := range strings.Split(m[2], "|") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		opt := ClassifyOption(raw)
		switch opt.Kind {
		case OptionType:
			c.Options.Type = opt.Raw
		case OptionPlug:
			c.Options.Plug = opt.Raw
		case OptionArrows:
			c.Options.Arrows = opt.Int
		case OptionTrack:
			c.Options.Track = opt.Int
			c.Options.HasTrack = true
		case OptionOpacity:
			c.Options.Opacity = opt.Float
		case OptionColor:
			if !IsKnownColor(opt.Raw) {
				allKnown = false
			}
			// Keep the first color so it stays stable while later options are typed.
			if !colorSet {
				c.Options.Color = opt.Raw
				colorSet = true
			}
		}
	}
	if allKnown {
		c.explicit = true
	}
	return c, true
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

var colorNames = map[string]bool{
	"black": true, "white": true, "gray": true, "grey": true, "silver": true,
	"red": true, "maroon": true, "crimson": true, "coral": true, "orange": true,
	"gold": true, "yellow": true, "olive": true, "lime": true, "green": true,
	"teal": true, "cyan": true, "aqua": true, "blue": true, "navy": true,
	"indigo": true, "violet": true, "purple": true, "magenta": true, "pink": true,
	"brown": true, "transparent": true, "currentcolor": true,
}

// IsKnownColor reports whether s is a recognizable CSS color token.
func IsKnownColor(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	if colorNames[lower] || hexColor.MatchString(lower) {
		return true
	}
	for _, fn := range []string{"rgb(", "rgba(", "hsl(", "hsla(", "var("} {
		if strings.HasPrefix(lower, fn) && strings.HasSuffix(lower, ")") {
			return true
		}
	}
	return false
}
