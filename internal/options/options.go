// Package options draws randomized converter flag sets and derives the
// argument tokens and record labels from the same draw.
package options

import (
	"math/rand/v2"
	"strconv"
)

const (
	thresholdMin = 64
	thresholdMax = 192
)

// Flag is one converter option, optionally carrying a value.
type Flag struct {
	Name  string
	Value string
}

// Options is an ordered set of converter flags.
type Options []Flag

// Args renders the flags as converter argument tokens.
func (o Options) Args() []string {
	args := make([]string, 0, len(o)*2)
	for _, flag := range o {
		args = append(args, "--"+flag.Name)
		if flag.Value != "" {
			args = append(args, flag.Value)
		}
	}
	return args
}

// Labels renders the flags as record labels: the flag name without its dashes,
// followed by the value when there is one ("width 64", "braille").
func (o Options) Labels() []string {
	labels := make([]string, 0, len(o))
	for _, flag := range o {
		label := flag.Name
		if flag.Value != "" {
			label += " " + flag.Value
		}
		labels = append(labels, label)
	}
	return labels
}

// Sampler draws Options. It is not safe for concurrent use; the pipeline
// samples from a single goroutine.
type Sampler struct {
	rng       *rand.Rand
	widthMin  int
	widthMax  int
	color     bool
	threshold bool
}

// Config bounds the sampler.
type Config struct {
	WidthMin int
	WidthMax int
	// Color and Threshold enable those flags; disabled flags are never drawn.
	Color     bool
	Threshold bool
}

// NewSampler returns a sampler over cfg. A nil rng draws from the process-wide
// random source.
func NewSampler(cfg Config, rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	widthMax := cfg.WidthMax
	if widthMax < cfg.WidthMin {
		widthMax = cfg.WidthMin
	}
	return &Sampler{
		rng:       rng,
		widthMin:  cfg.WidthMin,
		widthMax:  widthMax,
		color:     cfg.Color,
		threshold: cfg.Threshold,
	}
}

// NewSeeded returns a deterministic rng for seed.
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Sample draws one option set. Flags appear in a fixed order: width, braille,
// color, complex, dither, grayscale, negative, threshold. Dither and threshold
// are only drawn together with braille.
func (s *Sampler) Sample() Options {
	width := s.widthMin + s.rng.IntN(s.widthMax-s.widthMin+1)
	opts := Options{{Name: "width", Value: strconv.Itoa(width)}}

	braille := s.coin()
	if braille {
		opts = append(opts, Flag{Name: "braille"})
	}
	if s.coin() && s.color {
		opts = append(opts, Flag{Name: "color"})
	}
	if s.coin() {
		opts = append(opts, Flag{Name: "complex"})
	}
	if braille && s.coin() {
		opts = append(opts, Flag{Name: "dither"})
	}
	if s.coin() {
		opts = append(opts, Flag{Name: "grayscale"})
	}
	if s.coin() {
		opts = append(opts, Flag{Name: "negative"})
	}
	if braille && s.threshold && s.coin() {
		value := thresholdMin + s.rng.IntN(thresholdMax-thresholdMin+1)
		opts = append(opts, Flag{Name: "threshold", Value: strconv.Itoa(value)})
	}
	return opts
}

func (s *Sampler) coin() bool {
	return s.rng.IntN(2) == 1
}
