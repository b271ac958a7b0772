package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/snonux/cardforge/internal/provider"
)

// ESpeakConfig holds configuration for espeak-ng audio generation
type ESpeakConfig struct {
	Voice      string        `mapstructure:"voice"`     // Voice variant (e.g., "bg", "bg+m1", "bg+f1")
	Speed      int           `mapstructure:"speed"`     // Words per minute, 80 to 450
	Pitch      int           `mapstructure:"pitch"`     // 0 to 99
	Amplitude  int           `mapstructure:"amplitude"` // 0 to 200
	WordGap    int           `mapstructure:"word_gap"`  // Gap between words in 10ms units
	Binary     string        `mapstructure:"binary"`
	Timeout    time.Duration `mapstructure:"timeout"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
}

// DefaultESpeakConfig returns the default configuration for Bulgarian voice
func DefaultESpeakConfig() *ESpeakConfig {
	return &ESpeakConfig{
		Voice:     "bg",
		Speed:     150,
		Pitch:     50,
		Amplitude: 100,
		Binary:    "espeak-ng",
		Timeout:   30 * time.Second,
	}
}

// ESpeakSchema validates the settings of the espeak provider
const ESpeakSchema = `{
  "type": "object",
  "properties": {
    "voice": {"type": "string", "pattern": "^bg"},
    "speed": {"type": ["integer", "string"], "minimum": 80, "maximum": 450},
    "pitch": {"type": ["integer", "string"], "minimum": 0, "maximum": 99},
    "amplitude": {"type": ["integer", "string"], "minimum": 0, "maximum": 200},
    "word_gap": {"type": ["integer", "string"], "minimum": 0},
    "binary": {"type": "string"}
  }
}`

// runFunc runs an external command and returns its combined output
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ESpeakProvider generates offline speech with espeak-ng. MP3 output is
// converted from WAV with ffmpeg.
type ESpeakProvider struct {
	config *ESpeakConfig
	run    runFunc
}

var _ provider.AudioProvider = (*ESpeakProvider)(nil)

// NewESpeakProvider checks that espeak-ng is installed
func NewESpeakProvider(config *ESpeakConfig) (*ESpeakProvider, error) {
	if config == nil {
		config = DefaultESpeakConfig()
	}
	if _, err := exec.LookPath(config.Binary); err != nil {
		return nil, fmt.Errorf("%s is not installed or not in PATH: %w", config.Binary, err)
	}
	return &ESpeakProvider{config: config, run: runCommand}, nil
}

// NewESpeakFromSettings creates the provider from registry settings
func NewESpeakFromSettings(settings map[string]any) (*ESpeakProvider, error) {
	config := DefaultESpeakConfig()
	if err := provider.DecodeSettings(settings, config); err != nil {
		return nil, err
	}
	return NewESpeakProvider(config)
}

// Name returns the provider name
func (p *ESpeakProvider) Name() string {
	return "espeak-ng"
}

// Generate produces speech; pronunciation requests are not supported
func (p *ESpeakProvider) Generate(ctx context.Context, req provider.Request) provider.Result {
	if req.Kind != provider.KindSpeech && req.Kind != "" {
		return provider.Failed(fmt.Errorf("espeak: unsupported request kind %q", req.Kind))
	}
	if err := ValidateBulgarianText(req.Content); err != nil {
		return provider.Failed(err)
	}
	if req.OutputPath == "" {
		return provider.Failed(fmt.Errorf("espeak: output path is required"))
	}

	ctx, cancel := provider.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	voice := req.Param("voice", p.config.Voice)
	var err error
	if strings.ToLower(filepath.Ext(req.OutputPath)) == ".wav" {
		err = p.generateWAV(ctx, req.Content, voice, req.OutputPath)
	} else {
		err = p.generateMP3(ctx, req.Content, voice, req.OutputPath)
	}
	if err != nil {
		return provider.Failed(err)
	}
	return provider.Succeeded(req.OutputPath, map[string]any{"voice": voice})
}

// GenerateBatch runs the requests one after another
func (p *ESpeakProvider) GenerateBatch(ctx context.Context, reqs []provider.Request) []provider.Result {
	return provider.RunBatch(ctx, reqs, p.config.BatchDelay, p.Generate)
}

// args builds the espeak-ng command line
func (p *ESpeakProvider) args(text, voice, outputFile string) []string {
	args := []string{
		"-v", voice,
		"-s", fmt.Sprintf("%d", clamp(p.config.Speed, 80, 450)),
		"-p", fmt.Sprintf("%d", clamp(p.config.Pitch, 0, 99)),
		"-a", fmt.Sprintf("%d", clamp(p.config.Amplitude, 0, 200)),
	}
	if p.config.WordGap > 0 {
		args = append(args, "-g", fmt.Sprintf("%d", p.config.WordGap))
	}
	return append(args, "-w", outputFile, text)
}

func (p *ESpeakProvider) generateWAV(ctx context.Context, text, voice, outputFile string) error {
	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	output, err := p.run(ctx, p.config.Binary, p.args(text, voice, outputFile)...)
	if err != nil {
		return fmt.Errorf("espeak-ng failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

func (p *ESpeakProvider) generateMP3(ctx context.Context, text, voice, outputFile string) error {
	tempWAV := strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + "_temp.wav"
	if err := p.generateWAV(ctx, text, voice, tempWAV); err != nil {
		return err
	}
	defer os.Remove(tempWAV)

	output, err := p.run(ctx, "ffmpeg", "-i", tempWAV, "-acodec", "mp3", "-y", outputFile)
	if err != nil {
		return fmt.Errorf("ffmpeg conversion failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

// ListVoices returns available Bulgarian voice variants
func ListVoices() []string {
	return []string{"bg", "bg+m1", "bg+m2", "bg+m3", "bg+f1", "bg+f2", "bg+f3"}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
