// Package config resolves layered application configuration.
//
// Sources are loaded in ascending priority and deep-merged, so a later
// source overrides scalar values of an earlier one while nested mappings
// are combined key by key. After merging, string values have their
// ${NAME} and ${NAME:default} placeholders replaced from the environment,
// and finally environment variables carrying the reserved prefix
// (CARDFORGE_ by default) are applied as the highest-priority overrides.
//
// Resolved configurations are cached per source set until ClearCache is
// called.
package config
