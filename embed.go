package beaverscribe

import "embed"

// WebFiles holds the upload page served at /.
//
//go:embed web/*
var WebFiles embed.FS
