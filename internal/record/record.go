// Package record assembles dataset rows from a caption choice, converter
// output, and the option labels that produced it.
package record

import (
	"errors"
	"math/rand/v2"
	"strings"

	"golang.org/x/text/unicode/norm"

	"scrapscii/internal/unicodeclass"
)

// Record is one dataset row. Field tags name the shard columns.
type Record struct {
	Caption   string `parquet:"caption" json:"caption"`
	Content   string `parquet:"content" json:"content"`
	Labels    string `parquet:"labels" json:"labels"`
	Charsets  string `parquet:"charsets" json:"charsets"`
	Chartypes string `parquet:"chartypes" json:"chartypes"`
}

// ErrNoCaptions is returned when a sample offers no caption to choose from.
var ErrNoCaptions = errors.New("no caption choices")

// Classifier maps a character to a label.
type Classifier func(rune) string

// Assembler builds records. It is not safe for concurrent use.
type Assembler struct {
	rng      *rand.Rand
	sections Classifier
	types    Classifier
}

// NewAssembler returns an assembler drawing captions from rng. A nil rng uses
// the process-wide source.
func NewAssembler(rng *rand.Rand) *Assembler {
	return &Assembler{
		rng:      rng,
		sections: unicodeclass.Section,
		types:    unicodeclass.Category,
	}
}

// Assemble draws one caption uniformly from captions and labels content with
// its distinct character sections and categories.
func (a *Assembler) Assemble(captions []string, content string, labels []string) (Record, error) {
	if len(captions) == 0 {
		return Record{}, ErrNoCaptions
	}
	caption := captions[a.intN(len(captions))]
	return Record{
		Caption:   strings.TrimSpace(norm.NFC.String(caption)),
		Content:   content,
		Labels:    strings.Join(labels, ","),
		Charsets:  unicodeclass.Distinct(content, a.sections),
		Chartypes: unicodeclass.Distinct(content, a.types),
	}, nil
}

func (a *Assembler) intN(n int) int {
	if a.rng == nil {
		return rand.IntN(n)
	}
	return a.rng.IntN(n)
}
