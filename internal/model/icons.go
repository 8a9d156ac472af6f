package model

// Centralized icons for the tree views
// Using simple single-width characters for consistent terminal rendering
const (
	IconWrite     = "✎" // Opened for writing
	IconRead      = "·" // Opened read-only
	IconDir       = "▸" // Collapsed directory
	IconDirOpen   = "▾" // Expanded directory
	IconTainted   = "!" // Directory holds written files
	IconConflict  = "≈" // File later seen as a directory ("." entry)
	IconDiagnosed = "✗" // Line carried a diagnostic
)
