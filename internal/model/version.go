package model

// Version is overridden at build time with -ldflags "-X fdtrace/internal/model.Version=...".
var Version = "0.1.0"
