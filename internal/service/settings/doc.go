// Package settings exposes the runtime switches stored in the settings
// table: the maintenance flag and the per-channel enable flags.
package settings
