package elements

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/mesh-intelligence/canvas/pkg/types"
)

// Props is the typed property record of one element type.
type Props interface {
	ElementType() types.ElementType
	Validate() error
}

// Enumerations accepted by typed props.
var (
	alignments   = []string{"left", "center", "right", "justify"}
	fontWeights  = []string{"normal", "bold", "lighter", "bolder"}
	buttonStyles = []string{"primary", "secondary", "outline", "ghost"}
	buttonSizes  = []string{"small", "medium", "large"}
)

// LogoProps is a Logo element: an image link scaled to at most MaxWidth pixels.
type LogoProps struct {
	URL      string `json:"url"`
	MaxWidth int    `json:"maxWidth"`
	AltText  string `json:"altText"`
}

// TextProps is a Text element. Content is stored as written; renderers embed
// it through Registry.Markup.
type TextProps struct {
	Content    string `json:"content"`
	FontSize   int    `json:"fontSize"`
	Color      string `json:"color"`
	FontWeight string `json:"fontWeight"`
	Alignment  string `json:"alignment"`
}

// ImageProps is an Image element.
type ImageProps struct {
	URL      string `json:"url"`
	AltText  string `json:"altText"`
	MaxWidth int    `json:"maxWidth"`
}

// IconProps is an Icon element named from the icon set.
type IconProps struct {
	Name  string `json:"name"`
	Size  int    `json:"size"`
	Color string `json:"color"`
}

// Socials holds a contact block's social profile links.
type Socials struct {
	Facebook  string `json:"facebook"`
	Twitter   string `json:"twitter"`
	Instagram string `json:"instagram"`
}

// ContactProps is a contact block. Socials merges one level deep on update.
type ContactProps struct {
	Phone      string  `json:"phone"`
	Email      string  `json:"email"`
	Address    string  `json:"address"`
	Socials    Socials `json:"socials"`
	ShowLabels bool    `json:"showLabels"`
}

// SurveyEmbedProps embeds a survey behind a call-to-action button.
type SurveyEmbedProps struct {
	SurveyID    string `json:"surveyId"`
	ButtonText  string `json:"buttonText"`
	ButtonStyle string `json:"buttonStyle"`
}

// ButtonProps is a link styled as a button.
type ButtonProps struct {
	Label string `json:"label"`
	URL   string `json:"url"`
	Style string `json:"style"`
	Size  string `json:"size"`
}

func (*LogoProps) ElementType() types.ElementType        { return types.ElementLogo }
func (*TextProps) ElementType() types.ElementType        { return types.ElementText }
func (*ImageProps) ElementType() types.ElementType       { return types.ElementImage }
func (*IconProps) ElementType() types.ElementType        { return types.ElementIcon }
func (*ContactProps) ElementType() types.ElementType     { return types.ElementContact }
func (*SurveyEmbedProps) ElementType() types.ElementType { return types.ElementSurveyEmbed }
func (*ButtonProps) ElementType() types.ElementType      { return types.ElementButton }

func (p *LogoProps) Validate() error {
	return positive("maxWidth", p.MaxWidth)
}

func (p *TextProps) Validate() error {
	if err := positive("fontSize", p.FontSize); err != nil {
		return err
	}
	if err := oneOf("fontWeight", p.FontWeight, fontWeights); err != nil {
		return err
	}
	return oneOf("alignment", p.Alignment, alignments)
}

func (p *ImageProps) Validate() error {
	return positive("maxWidth", p.MaxWidth)
}

func (p *IconProps) Validate() error {
	return positive("size", p.Size)
}

func (p *ContactProps) Validate() error {
	return nil
}

func (p *SurveyEmbedProps) Validate() error {
	return oneOf("buttonStyle", p.ButtonStyle, buttonStyles)
}

func (p *ButtonProps) Validate() error {
	if err := oneOf("style", p.Style, buttonStyles); err != nil {
		return err
	}
	return oneOf("size", p.Size, buttonSizes)
}

// Typed resolves overrides for t and decodes the result into t's typed
// record. It fails with ErrInvalidProps when a known key holds a value of
// the wrong type or outside its enumeration. Unknown keys are ignored.
func (r *Registry) Typed(t types.ElementType, overrides map[string]any) (Props, error) {
	s, err := r.Lookup(t)
	if err != nil {
		return nil, err
	}
	effective, err := r.Resolve(t, overrides)
	if err != nil {
		return nil, err
	}
	p := s.newProps()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  p,
	})
	if err != nil {
		return nil, fmt.Errorf("building decoder for %s: %w", t, err)
	}
	if err := dec.Decode(effective); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidProps, t, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", t, err)
	}
	return p, nil
}

func positive(key string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", types.ErrInvalidProps, key, v)
	}
	return nil
}

func oneOf(key, v string, allowed []string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q is not one of %v", types.ErrInvalidProps, key, v, allowed)
}
