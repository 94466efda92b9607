// Package web embeds the rewards page templates and static assets.
package web

import "embed"

// TemplatesFS holds the index page and the rewards partial.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static/*
var StaticFS embed.FS
