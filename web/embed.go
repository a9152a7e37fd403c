package web

import "embed"

// Content holds the embedded page template and stylesheet.
//
//go:embed templates/index.html static/styles.css
var Content embed.FS
