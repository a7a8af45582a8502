// Package web embeds the static dashboard assets for single-binary distribution.
package web

import "embed"

// Assets contains the dashboard build output served on unmatched routes.
//
//go:embed all:build
var Assets embed.FS
