package elements

import "github.com/mesh-intelligence/canvas/pkg/types"

// builtinSpecs returns the element type catalog. Each call builds new maps.
func builtinSpecs() []*Spec {
	return []*Spec{
		{
			Type: types.ElementLogo,
			Defaults: map[string]any{
				"url":      "",
				"maxWidth": 200,
				"altText":  "Logo",
			},
			newProps: func() Props { return &LogoProps{} },
		},
		{
			Type: types.ElementText,
			Defaults: map[string]any{
				"content":    "",
				"fontSize":   16,
				"color":      "#000000",
				"fontWeight": "normal",
				"alignment":  "right",
			},
			Sanitized: []string{"content"},
			newProps:  func() Props { return &TextProps{} },
		},
		{
			Type: types.ElementImage,
			Defaults: map[string]any{
				"url":      "",
				"altText":  "",
				"maxWidth": 800,
			},
			newProps: func() Props { return &ImageProps{} },
		},
		{
			Type: types.ElementIcon,
			Defaults: map[string]any{
				"name":  "star",
				"size":  24,
				"color": "#000000",
			},
			newProps: func() Props { return &IconProps{} },
		},
		{
			Type: types.ElementContact,
			Defaults: map[string]any{
				"phone":   "",
				"email":   "",
				"address": "",
				"socials": map[string]any{
					"facebook":  "",
					"twitter":   "",
					"instagram": "",
				},
				"showLabels": true,
			},
			Mergeable: []string{"socials"},
			newProps:  func() Props { return &ContactProps{} },
		},
		{
			Type: types.ElementSurveyEmbed,
			Defaults: map[string]any{
				"surveyId":    "",
				"buttonText":  "Take the survey",
				"buttonStyle": "primary",
			},
			newProps: func() Props { return &SurveyEmbedProps{} },
		},
		{
			Type: types.ElementButton,
			Defaults: map[string]any{
				"label": "Click here",
				"url":   "#",
				"style": "primary",
				"size":  "medium",
			},
			newProps: func() Props { return &ButtonProps{} },
		},
	}
}
