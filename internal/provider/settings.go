package provider

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeSettings decodes a provider settings mapping into a config struct
// tagged with `mapstructure`. Strings are converted to numbers, booleans
// and durations ("1500ms") where the target field needs it.
func DecodeSettings(settings map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(settings); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Unresolved reports whether a setting still holds a ${NAME} placeholder,
// which happens when the referenced environment variable is not set
func Unresolved(value string) bool {
	return strings.Contains(value, "${")
}

// ResolvePath anchors a relative path at baseDir
func ResolvePath(baseDir, path string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
