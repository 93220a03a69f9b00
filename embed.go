package pagecms

import "embed"

// EmbeddedAssets contains static assets shipped with the engine:
// pagecms.css, linked from standard pages and inlined on AMP pages, and
// the default favicon.svg.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
