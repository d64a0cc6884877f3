package model

import "html/template"

// PageData is the template context for the site layout.
type PageData struct {
	SiteTitle string
	PageTitle string
	Content   template.HTML
	Sidebar   template.HTML
	BaseURL   string
	Date      string
	Posts     []PostSummary
}
