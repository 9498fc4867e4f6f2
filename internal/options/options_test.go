package options

import (
	"reflect"
	"slices"
	"strconv"
	"strings"
	"testing"
)

func TestArgsAndLabels(t *testing.T) {
	opts := Options{{Name: "width", Value: "64"}, {Name: "braille"}, {Name: "dither"}}

	if got, want := opts.Args(), []string{"--width", "64", "--braille", "--dither"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Args() = %v, want %v", got, want)
	}
	if got, want := opts.Labels(), []string{"width 64", "braille", "dither"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Labels() = %v, want %v", got, want)
	}
}

func TestSampleProperties(t *testing.T) {
	sampler := NewSampler(Config{WidthMin: 16, WidthMax: 128, Color: true, Threshold: true}, NewSeeded(42))
	order := []string{"width", "braille", "color", "complex", "dither", "grayscale", "negative", "threshold"}

	sawBraille, sawDither, sawThreshold := false, false, false
	for i := 0; i < 2000; i++ {
		opts := sampler.Sample()
		if len(opts) == 0 || opts[0].Name != "width" {
			t.Fatalf("sample %d: width must come first: %v", i, opts)
		}
		width, err := strconv.Atoi(opts[0].Value)
		if err != nil || width < 16 || width > 128 {
			t.Fatalf("sample %d: width %q out of range", i, opts[0].Value)
		}

		last := -1
		for _, flag := range opts {
			pos := slices.Index(order, flag.Name)
			if pos <= last {
				t.Fatalf("sample %d: flag %q out of order in %v", i, flag.Name, opts)
			}
			last = pos
		}

		braille := drawn(opts, "braille")
		sawBraille = sawBraille || braille
		if drawn(opts, "dither") {
			sawDither = true
			if !braille {
				t.Fatalf("sample %d: dither without braille: %v", i, opts)
			}
		}
		for _, flag := range opts {
			if flag.Name != "threshold" {
				continue
			}
			sawThreshold = true
			if !braille {
				t.Fatalf("sample %d: threshold without braille: %v", i, opts)
			}
			value, err := strconv.Atoi(flag.Value)
			if err != nil || value < thresholdMin || value > thresholdMax {
				t.Fatalf("sample %d: threshold %q out of range", i, flag.Value)
			}
		}

		labels := opts.Labels()
		args := strings.Join(opts.Args(), " ")
		for _, label := range labels {
			if !strings.Contains(args, "--"+label) {
				t.Fatalf("sample %d: label %q has no matching argument in %q", i, label, args)
			}
		}
	}
	if !sawBraille || !sawDither || !sawThreshold {
		t.Fatalf("expected every braille variant to appear (braille=%v dither=%v threshold=%v)", sawBraille, sawDither, sawThreshold)
	}
}

func drawn(opts Options, name string) bool {
	return slices.ContainsFunc(opts, func(f Flag) bool { return f.Name == name })
}

func TestDisabledVariantsNeverDrawn(t *testing.T) {
	sampler := NewSampler(Config{WidthMin: 32, WidthMax: 32}, NewSeeded(7))
	for i := 0; i < 500; i++ {
		opts := sampler.Sample()
		if drawn(opts, "color") || drawn(opts, "threshold") {
			t.Fatalf("disabled flag drawn: %v", opts)
		}
		if opts[0].Value != "32" {
			t.Fatalf("expected fixed width 32, got %q", opts[0].Value)
		}
	}
}

func TestSeededSamplerIsDeterministic(t *testing.T) {
	cfg := Config{WidthMin: 16, WidthMax: 128, Color: true, Threshold: true}
	a := NewSampler(cfg, NewSeeded(99))
	b := NewSampler(cfg, NewSeeded(99))
	for i := 0; i < 50; i++ {
		if got, want := a.Sample().Args(), b.Sample().Args(); !reflect.DeepEqual(got, want) {
			t.Fatalf("draw %d diverged: %v vs %v", i, got, want)
		}
	}
}
