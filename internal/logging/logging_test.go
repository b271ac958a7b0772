package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		verbose bool
		want    zapcore.Level
		wantErr bool
	}{
		{name: "defaults", want: zapcore.WarnLevel},
		{name: "info console", level: "info", format: "console", want: zapcore.InfoLevel},
		{name: "upper case json", level: "ERROR", format: "JSON", want: zapcore.ErrorLevel},
		{name: "verbose wins", level: "error", verbose: true, want: zapcore.DebugLevel},
		{name: "bad level", level: "loud", wantErr: true},
		{name: "bad format", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.format, tt.verbose)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !logger.Core().Enabled(tt.want) {
				t.Errorf("level %v not enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
				t.Errorf("level %v enabled, want minimum %v", tt.want-1, tt.want)
			}
		})
	}
}
