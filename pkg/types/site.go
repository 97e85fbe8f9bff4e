package types

import "time"

// Site is one tenant's composed page and the root of the schema tree.
type Site struct {
	ID              string    `json:"id" yaml:"id"`
	TenantID        string    `json:"tenantId" yaml:"tenant_id"`
	Published       bool      `json:"published" yaml:"published"`
	Title           string    `json:"title" yaml:"title"`
	Favicon         string    `json:"favicon" yaml:"favicon"`
	MetaDescription string    `json:"metaDescription" yaml:"meta_description"`
	AnalyticsID     string    `json:"analyticsId" yaml:"analytics_id"`
	CreatedAt       time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" yaml:"updated_at"`
}

// SitePatch carries a partial metadata update. Nil fields are left as is.
type SitePatch struct {
	Title           *string `json:"title,omitempty"`
	Favicon         *string `json:"favicon,omitempty"`
	MetaDescription *string `json:"metaDescription,omitempty"`
	AnalyticsID     *string `json:"analyticsId,omitempty"`
}

// Apply copies every non-nil field of p onto s.
func (p SitePatch) Apply(s *Site) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Favicon != nil {
		s.Favicon = *p.Favicon
	}
	if p.MetaDescription != nil {
		s.MetaDescription = *p.MetaDescription
	}
	if p.AnalyticsID != nil {
		s.AnalyticsID = *p.AnalyticsID
	}
}

// Empty reports whether the patch changes nothing.
func (p SitePatch) Empty() bool {
	return p.Title == nil && p.Favicon == nil && p.MetaDescription == nil && p.AnalyticsID == nil
}
