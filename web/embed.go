package web

import "embed"

// Templates embeds the PDF document templates.
//
//go:embed templates/**/*.html
var Templates embed.FS
