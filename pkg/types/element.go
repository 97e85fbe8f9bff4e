package types

// ElementType names one kind of element. The set is closed.
type ElementType string

// Element types.
const (
	ElementLogo        ElementType = "Logo"
	ElementText        ElementType = "Text"
	ElementImage       ElementType = "Image"
	ElementIcon        ElementType = "Icon"
	ElementContact     ElementType = "Contact"
	ElementSurveyEmbed ElementType = "SurveyEmbed"
	ElementButton      ElementType = "Button"
)

// ElementTypes lists every element type in catalog order.
var ElementTypes = []ElementType{
	ElementLogo,
	ElementText,
	ElementImage,
	ElementIcon,
	ElementContact,
	ElementSurveyEmbed,
	ElementButton,
}

// validElementTypes is the set of recognized element types.
var validElementTypes = map[ElementType]bool{
	ElementLogo:        true,
	ElementText:        true,
	ElementImage:       true,
	ElementIcon:        true,
	ElementContact:     true,
	ElementSurveyEmbed: true,
	ElementButton:      true,
}

// IsValidElementType reports whether t is one of the element types.
func IsValidElementType(t ElementType) bool {
	return validElementTypes[t]
}

// Element is a leaf of the site tree. Props holds only the properties the
// editor has overridden; the element's effective properties are its type's
// defaults merged with Props. Type never changes after creation.
type Element struct {
	ID    string         `json:"id" yaml:"id"`
	ColID string         `json:"colId" yaml:"col_id"`
	Type  ElementType    `json:"type" yaml:"type"`
	Props map[string]any `json:"props" yaml:"props"`
	Order int            `json:"order" yaml:"order"`
}
