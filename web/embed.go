package web

import "embed"

// Static embeds the client shell and static assets.
//
//go:embed static
var Static embed.FS
