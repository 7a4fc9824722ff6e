package config

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"halftone-compare/internal/tool"
)

const (
	RendererOpenCV = "opencv"
	RendererGo     = "go"
)

// Variant is one tool configuration and the suffix of the file it produces.
type Variant struct {
	Suffix string  `yaml:"suffix"`
	Op     tool.Op `yaml:"op"`

	tool.Params `yaml:",inline"`
}

// Figure controls composition of the comparison grid.
type Figure struct {
	Rows        int    `yaml:"rows"`
	Cols        int    `yaml:"cols"`
	Gap         int    `yaml:"gap"`
	LabelScale  int    `yaml:"label_scale"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	Background  string `yaml:"background"`
	Foreground  string `yaml:"foreground"`
}

type Config struct {
	BaseDir    string        `yaml:"base_dir"`
	ImageName  string        `yaml:"image_name"`
	InputExt   string        `yaml:"input_ext"`
	OutputPath string        `yaml:"output_path"`
	ToolPath   string        `yaml:"tool_path"`
	Timeout    time.Duration `yaml:"timeout"`
	Parallel   bool          `yaml:"parallel"`
	CleanStale bool          `yaml:"clean_stale"`
	Renderer   string        `yaml:"renderer"`
	Figure     Figure        `yaml:"figure"`
	Variants   []Variant     `yaml:"variants"`
}

// DefaultVariants are the five demo configurations in grid order.
func DefaultVariants() []Variant {
	return []Variant{
		{Suffix: "_dith", Op: tool.OpDither, Params: tool.Params{Size: 16}},
		{Suffix: "_error", Op: tool.OpErrorDiffusion, Params: tool.Params{Kernel: tool.Stucki, Threshold: 127}},
		{Suffix: "_mbvq", Op: tool.OpErrorDiffusion, Params: tool.Params{Kernel: tool.Stucki, Threshold: 127, MBVQ: true}},
		{Suffix: "_dith_bw", Op: tool.OpDither, Params: tool.Params{Size: 16, BW: true}},
		{Suffix: "_mbvq_bw", Op: tool.OpErrorDiffusion, Params: tool.Params{Kernel: tool.Stucki, Threshold: 127, BW: true}},
	}
}

func Default() Config {
	return Config{
		BaseDir:    "sample",
		ImageName:  "parrot",
		InputExt:   ".jpg",
		OutputPath: "assests/demo_image.jpg",
		ToolPath:   "./image_print",
		CleanStale: true,
		Renderer:   RendererOpenCV,
		Figure: Figure{
			Rows:        2,
			Cols:        3,
			LabelScale:  3,
			JPEGQuality: 95,
			Background:  "#ffffff",
			Foreground:  "#000000",
		},
		Variants: DefaultVariants(),
	}
}

// Load reads a YAML file over the defaults. Keys that are absent keep their
// default value; a variants list replaces the default list entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate reports every problem it finds, joined.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.BaseDir) == "" {
		errs = append(errs, invalid("base_dir", "must not be empty"))
	}
	if strings.TrimSpace(c.ImageName) == "" {
		errs = append(errs, invalid("image_name", "must not be empty"))
	}
	if c.InputExt == "" || !strings.HasPrefix(c.InputExt, ".") {
		errs = append(errs, invalid("input_ext", "must start with a dot, got %q", c.InputExt))
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		errs = append(errs, invalid("output_path", "must not be empty"))
	}
	if strings.TrimSpace(c.ToolPath) == "" {
		errs = append(errs, invalid("tool_path", "must not be empty"))
	}
	if c.Timeout < 0 {
		errs = append(errs, invalid("timeout", "must not be negative"))
	}
	switch c.Renderer {
	case RendererOpenCV, RendererGo:
	default:
		errs = append(errs, invalid("renderer", "must be %q or %q, got %q", RendererOpenCV, RendererGo, c.Renderer))
	}

	errs = append(errs, c.Figure.validate()...)

	if want := c.Figure.Rows*c.Figure.Cols - 1; c.Figure.Rows > 0 && c.Figure.Cols > 0 && len(c.Variants) != want {
		errs = append(errs, invalid("variants", "need %d entries for a %dx%d grid, got %d",
			want, c.Figure.Rows, c.Figure.Cols, len(c.Variants)))
	}

	seen := make(map[string]int, len(c.Variants))
	for i, v := range c.Variants {
		field := fmt.Sprintf("variants[%d]", i)
		if v.Suffix == "" {
			errs = append(errs, invalid(field+".suffix", "must not be empty"))
		} else if strings.ContainsAny(v.Suffix, `/\`) {
			errs = append(errs, invalid(field+".suffix", "must not contain a path separator"))
		} else if j, dup := seen[v.Suffix]; dup {
			errs = append(errs, invalid(field+".suffix", "duplicates variants[%d]", j))
		} else {
			seen[v.Suffix] = i
		}
		errs = append(errs, v.validate(field)...)
	}

	return errors.Join(errs...)
}

func (v Variant) validate(field string) []error {
	var errs []error
	switch v.Op {
	case tool.OpDither:
		if v.Size < 2 || v.Size&(v.Size-1) != 0 {
			errs = append(errs, invalid(field+".size", "must be a power of two >= 2, got %d", v.Size))
		}
	case tool.OpErrorDiffusion:
		if !v.Kernel.Valid() {
			errs = append(errs, invalid(field+".kernel", "must be 1, 2 or 3, got %d", v.Kernel))
		}
		if v.Threshold > 255 {
			errs = append(errs, invalid(field+".threshold", "must be <= 255, got %d", v.Threshold))
		}
	default:
		errs = append(errs, invalid(field+".op", "must be 1 or 2, got %d", v.Op))
	}
	return errs
}

func (f Figure) validate() []error {
	var errs []error
	if f.Rows <= 0 || f.Cols <= 0 {
		errs = append(errs, invalid("figure", "rows and cols must be positive, got %dx%d", f.Rows, f.Cols))
	}
	if f.Gap < 0 {
		errs = append(errs, invalid("figure.gap", "must not be negative"))
	}
	if f.LabelScale < 1 {
		errs = append(errs, invalid("figure.label_scale", "must be >= 1"))
	}
	if f.JPEGQuality < 1 || f.JPEGQuality > 100 {
		errs = append(errs, invalid("figure.jpeg_quality", "must be in [1, 100], got %d", f.JPEGQuality))
	}
	if _, err := ParseHexColor(f.Background); err != nil {
		errs = append(errs, invalid("figure.background", "%v", err))
	}
	if _, err := ParseHexColor(f.Foreground); err != nil {
		errs = append(errs, invalid("figure.foreground", "%v", err))
	}
	return errs
}

func (f Figure) BackgroundColor() color.RGBA {
	c, _ := ParseHexColor(f.Background)
	return c
}

func (f Figure) ForegroundColor() color.RGBA {
	c, _ := ParseHexColor(f.Foreground)
	return c
}

// ParseHexColor accepts #rgb and #rrggbb.
func ParseHexColor(s string) (color.RGBA, error) {
	c := color.RGBA{A: 0xff}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 || !strings.HasPrefix(s, "#") {
		return c, fmt.Errorf("color %q is not #rgb or #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return c, fmt.Errorf("color %q is not hexadecimal", s)
	}
	c.R = uint8(v >> 16)
	c.G = uint8(v >> 8)
	c.B = uint8(v)
	return c, nil
}
