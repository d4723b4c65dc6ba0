package models

// CaptionStyle selects the rendering preset the clipper burns into the
// output. The orchestrator treats it as opaque and only validates membership.
type CaptionStyle string

const (
	CaptionStyleClassic  CaptionStyle = "classic"
	CaptionStyleBoxed    CaptionStyle = "boxed"
	CaptionStyleYellow   CaptionStyle = "yellow"
	CaptionStyleMinimal  CaptionStyle = "minimal"
	CaptionStyleBold     CaptionStyle = "bold"
	CaptionStyleKaraoke  CaptionStyle = "karaoke"
	CaptionStyleNeon     CaptionStyle = "neon"
	CaptionStyleGradient CaptionStyle = "gradient"
	CaptionStyleNone     CaptionStyle = "none"
)

var captionStyles = map[CaptionStyle]bool{
	CaptionStyleClassic:  true,
	CaptionStyleBoxed:    true,
	CaptionStyleYellow:   true,
	CaptionStyleMinimal:  true,
	CaptionStyleBold:     true,
	CaptionStyleKaraoke:  true,
	CaptionStyleNeon:     true,
	CaptionStyleGradient: true,
	CaptionStyleNone:     true,
}

// Valid reports whether s is a known caption style.
func (s CaptionStyle) Valid() bool {
	return captionStyles[s]
}

// CaptionSettings is passed through to the external clipper as flags.
type CaptionSettings struct {
	IncludeCaptions bool         `json:"include_captions"`
	Style           CaptionStyle `json:"style"`
	Color           string       `json:"color,omitempty"`
	OutlineColor    string       `json:"outline_color,omitempty"`
}
