package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCategories(t *testing.T) {
	for _, err := range []error{ErrSiteNotFound, ErrRowNotFound, ErrColumnNotFound, ErrElementNotFound} {
		assert.ErrorIs(t, err, ErrNotFound, err.Error())
		assert.False(t, errors.Is(err, ErrInvalidArgument), err.Error())
	}
	for _, err := range []error{ErrInvalidWidth, ErrUnknownElementType, ErrInvalidProps, ErrInvalidSnapshot, ErrInvalidID, ErrInvalidTenant} {
		assert.ErrorIs(t, err, ErrInvalidArgument, err.Error())
		assert.False(t, errors.Is(err, ErrNotFound), err.Error())
	}
}

func TestValidWidth(t *testing.T) {
	tests := []struct {
		width int
		want  bool
	}{
		{0, false},
		{1, true},
		{6, true},
		{12, true},
		{13, false},
		{-4, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidWidth(tt.width), "width %d", tt.width)
	}
}

func TestIsValidElementType(t *testing.T) {
	for _, et := range ElementTypes {
		assert.True(t, IsValidElementType(et), string(et))
	}
	assert.False(t, IsValidElementType("Banner"))
	assert.False(t, IsValidElementType("text"))
	assert.False(t, IsValidElementType(""))
}

func TestSitePatchApply(t *testing.T) {
	title := "Feedback portal"
	analytics := "G-123"
	s := Site{Title: "old", Favicon: "/f.ico", AnalyticsID: ""}

	p := SitePatch{Title: &title, AnalyticsID: &analytics}
	assert.False(t, p.Empty())
	p.Apply(&s)

	assert.Equal(t, "Feedback portal", s.Title)
	assert.Equal(t, "/f.ico", s.Favicon, "nil fields must not change")
	assert.Equal(t, "G-123", s.AnalyticsID)
	assert.True(t, SitePatch{}.Empty())
}
