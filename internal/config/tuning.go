package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/liveoverlay/internal/analyzer"
	"github.com/ivlev/liveoverlay/internal/effects"
	"github.com/ivlev/liveoverlay/internal/tracker"
)

// GradientSpec is a two-stop palette entry in hex notation.
type GradientSpec struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Tuning holds the optional overrides for the tracker, palette and detection
// filter. Fields left out of the YAML file keep their defaults; the Get*
// methods resolve them.
type Tuning struct {
	// Tracker
	LerpFactor           *float64 `yaml:"lerp_factor,omitempty"`
	FadeSpeed            *float64 `yaml:"fade_speed,omitempty"`
	GracePeriod          *string  `yaml:"grace_period,omitempty"`           // duration string like "200ms"
	SyntheticGracePeriod *string  `yaml:"synthetic_grace_period,omitempty"` // duration string
	MatchIoU             *float64 `yaml:"match_iou,omitempty"`
	RemoveAlpha          *float64 `yaml:"remove_alpha,omitempty"`
	VisibleAlpha         *float64 `yaml:"visible_alpha,omitempty"`
	AlphaTolerance       *float64 `yaml:"alpha_tolerance,omitempty"`
	MinBoxSize           *float64 `yaml:"min_box_size,omitempty"`
	SettleMotion         *bool    `yaml:"settle_motion,omitempty"`

	// Style
	Palette     []GradientSpec    `yaml:"palette,omitempty"`
	Categories  map[int]int       `yaml:"categories,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Placeholder *string           `yaml:"placeholder,omitempty"`

	// Upstream filter
	MinConfidence        *float64 `yaml:"min_confidence,omitempty"`
	MinUnclassifiedWidth *float64 `yaml:"min_unclassified_width,omitempty"`
}

const maxTuningSize = 1 * 1024 * 1024

// LoadTuning reads and validates a tuning file. An empty path returns an
// empty Tuning, so every getter falls back to its default.
func LoadTuning(path string) (*Tuning, error) {
	if path == "" {
		return &Tuning{}, nil
	}
	cleanPath := filepath.Clean(path)
	switch ext := filepath.Ext(cleanPath); ext {
	case ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("tuning file must have .yaml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tuning file: %w", err)
	}
	if info.Size() > maxTuningSize {
		return nil, fmt.Errorf("tuning file too large: %d bytes (max %d)", info.Size(), maxTuningSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}
	return ParseTuning(data)
}

// ParseTuning decodes YAML tuning data. Unknown keys are rejected.
func ParseTuning(data []byte) (*Tuning, error) {
	t := &Tuning{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(t); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse tuning YAML: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	return t, nil
}

// Validate checks that the configured values are usable.
func (t *Tuning) Validate() error {
	for name, v := range map[string]*float64{
		"lerp_factor": t.LerpFactor,
		"fade_speed":  t.FadeSpeed,
	} {
		if v != nil && (*v <= 0 || *v > 1) {
			return fmt.Errorf("%s must be in (0, 1], got %f", name, *v)
		}
	}
	for name, v := range map[string]*float64{
		"match_iou":              t.MatchIoU,
		"remove_alpha":           t.RemoveAlpha,
		"visible_alpha":          t.VisibleAlpha,
		"alpha_tolerance":        t.AlphaTolerance,
		"min_confidence":         t.MinConfidence,
		"min_unclassified_width": t.MinUnclassifiedWidth,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}
	if t.MinBoxSize != nil && *t.MinBoxSize < 0 {
		return fmt.Errorf("min_box_size must not be negative, got %f", *t.MinBoxSize)
	}
	for name, v := range map[string]*string{
		"grace_period":           t.GracePeriod,
		"synthetic_grace_period": t.SyntheticGracePeriod,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	for i, g := range t.Palette {
		if _, err := effects.ParseHexColor(g.Start); err != nil {
			return fmt.Errorf("palette[%d].start: %w", i, err)
		}
		if _, err := effects.ParseHexColor(g.End); err != nil {
			return fmt.Errorf("palette[%d].end: %w", i, err)
		}
	}
	return nil
}

func (t *Tuning) GetLerpFactor() float64 {
	if t.LerpFactor == nil {
		return tracker.DefaultConfig().LerpFactor
	}
	return *t.LerpFactor
}

func (t *Tuning) GetFadeSpeed() float64 {
	if t.FadeSpeed == nil {
		return tracker.DefaultConfig().FadeSpeed
	}
	return *t.FadeSpeed
}

// GetGracePeriod returns the parsed grace period, falling back to the default
// when unset or unparseable.
func (t *Tuning) GetGracePeriod() time.Duration {
	return parseDurationOr(t.GracePeriod, tracker.DefaultConfig().GracePeriod)
}

func (t *Tuning) GetSyntheticGracePeriod() time.Duration {
	return parseDurationOr(t.SyntheticGracePeriod, tracker.DefaultConfig().SyntheticGracePeriod)
}

func (t *Tuning) GetMatchIoU() float64 {
	if t.MatchIoU == nil {
		return tracker.DefaultConfig().MatchIoU
	}
	return *t.MatchIoU
}

func (t *Tuning) GetMinBoxSize() float64 {
	if t.MinBoxSize == nil {
		return tracker.DefaultConfig().MinBoxSize
	}
	return *t.MinBoxSize
}

func (t *Tuning) GetSettleMotion() bool {
	return t.SettleMotion != nil && *t.SettleMotion
}

func (t *Tuning) GetPlaceholder() string {
	if t.Placeholder == nil {
		return tracker.DefaultStyle().Placeholder
	}
	return *t.Placeholder
}

func (t *Tuning) GetMinConfidence() float64 {
	if t.MinConfidence == nil {
		return analyzer.DefaultFilter().MinConfidence
	}
	return *t.MinConfidence
}

func (t *Tuning) GetMinUnclassifiedWidth() float64 {
	if t.MinUnclassifiedWidth == nil {
		return analyzer.DefaultFilter().MinUnclassifiedWidth
	}
	return *t.MinUnclassifiedWidth
}

// TrackerConfig resolves the tracker constants.
func (t *Tuning) TrackerConfig() tracker.Config {
	cfg := tracker.DefaultConfig()
	cfg.LerpFactor = t.GetLerpFactor()
	cfg.FadeSpeed = t.GetFadeSpeed()
	cfg.GracePeriod = t.GetGracePeriod()
	cfg.SyntheticGracePeriod = t.GetSyntheticGracePeriod()
	cfg.MatchIoU = t.GetMatchIoU()
	cfg.MinBoxSize = t.GetMinBoxSize()
	cfg.SettleMotion = t.GetSettleMotion()
	if t.RemoveAlpha != nil {
		cfg.RemoveAlpha = *t.RemoveAlpha
	}
	if t.VisibleAlpha != nil {
		cfg.VisibleAlpha = *t.VisibleAlpha
	}
	if t.AlphaTolerance != nil {
		cfg.AlphaTolerance = *t.AlphaTolerance
	}
	return cfg
}

// GetPalette returns the configured gradients, or the default palette.
func (t *Tuning) GetPalette() []effects.Gradient {
	if len(t.Palette) == 0 {
		return effects.DefaultPalette()
	}
	out := make([]effects.Gradient, 0, len(t.Palette))
	for _, g := range t.Palette {
		// Validate has already accepted these
		start, _ := effects.ParseHexColor(g.Start)
		end, _ := effects.ParseHexColor(g.End)
		out = append(out, effects.Gradient{Start: start, End: end})
	}
	return out
}

// Style builds the tracker style matching the palette.
func (t *Tuning) Style() tracker.Style {
	s := tracker.DefaultStyle()
	s.PaletteSize = len(t.GetPalette())
	if len(t.Categories) > 0 {
		s.CategoryColors = t.Categories
	}
	s.Labels = t.Labels
	s.Placeholder = t.GetPlaceholder()
	return s
}

// Filter returns the upstream detection filter thresholds.
func (t *Tuning) Filter() analyzer.Filter {
	return analyzer.Filter{
		MinConfidence:        t.GetMinConfidence(),
		MinUnclassifiedWidth: t.GetMinUnclassifiedWidth(),
	}
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}
