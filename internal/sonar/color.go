package sonar

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	rgbPattern       = regexp.MustCompile(`rgba?\(([^)]+)\)`)
	componentPattern = regexp.MustCompile(`[\d.]+`)
)

// Inline style properties the viewer uses to tint new-code lines.
var tintProperties = []string{"--line-background", "background-color", "background"}

// inlineTint returns the first tint-related declaration in a style attribute.
func inlineTint(style string) string {
	if style == "" {
		return ""
	}
	for _, decl := range strings.Split(style, ";") {
		prop, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		for _, want := range tintProperties {
			if prop == want {
				value, _, _ = strings.Cut(value, "<")
				return strings.TrimSpace(strings.Trim(strings.TrimSpace(value), `"'`))
			}
		}
	}
	return ""
}

// hasBlueTint reports whether color reads as the viewer's light-blue new-code tint.
func hasBlueTint(color string) bool {
	if color == "" {
		return false
	}
	color = strings.ToLower(strings.TrimSpace(color))
	if strings.Contains(color, "linear-gradient") {
		return true
	}

	r, g, b, a, ok := parseRGBA(color)
	if !ok || a == 0 {
		return false
	}
	if b-max(r, g) < 12 {
		return false
	}
	return b >= 100
}

func parseRGBA(color string) (r, g, b, a float64, ok bool) {
	match := rgbPattern.FindStringSubmatch(color)
	if match == nil {
		return 0, 0, 0, 0, false
	}
	parts := componentPattern.FindAllString(match[1], -1)
	if len(parts) < 3 {
		return 0, 0, 0, 0, false
	}
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		values[i] = v
	}
	a = 1
	if len(values) >= 4 {
		a = values[3]
	}
	return values[0], values[1], values[2], a, true
}
