// Package extract pulls a delimited numeric answer out of free model text.
//
// The contract is strict on output and lenient on input: Value always returns
// a number formatted as the model wrote it, or "Unknown". Nothing else leaks out.
package extract

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"rag-backend/internal/models"
)

var (
	errNoMatch      = errors.New("no delimited value found")
	errInvalidValue = errors.New("delimited value is neither a number nor Unknown")
)

// Result pairs the cleaned value with the model text it came from.
type Result struct {
	Value string `json:"value"`
	Raw   string `json:"raw"`
}

// Extractor finds values wrapped in a delimiter pair, like __12.5__.
type Extractor struct {
	delimiter string
	re        *regexp.Regexp
}

// New returns an Extractor for delimiter. An empty delimiter means "__".
func New(delimiter string) *Extractor {
	if delimiter == "" {
		delimiter = models.DefaultDelimiter
	}
	d := regexp.QuoteMeta(delimiter)
	return &Extractor{
		delimiter: delimiter,
		re:        regexp.MustCompile(d + `(.*?)` + d),
	}
}

func (e *Extractor) Delimiter() string { return e.delimiter }

// Extract returns the cleaned value of raw together with raw itself.
func (e *Extractor) Extract(raw string) Result {
	return Result{Value: e.Value(raw), Raw: raw}
}

// Value returns the last delimited value in raw if it is a number or Unknown,
// and "Unknown" otherwise.
func (e *Extractor) Value(raw string) string {
	v, err := e.parse(raw)
	if err != nil {
		return models.UnknownValue
	}
	return v
}

func (e *Extractor) parse(raw string) (string, error) {
	candidates := e.Candidates(raw)
	if len(candidates) == 0 {
		return "", errNoMatch
	}
	// The model states its conclusion last; earlier matches are intermediate mentions.
	return Validate(candidates[len(candidates)-1])
}

// Candidates returns the content of every non-overlapping delimited span, in order.
// A span never crosses a line break.
func (e *Extractor) Candidates(raw string) []string {
	matches := e.re.FindAllStringSubmatch(raw, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// Validate trims candidate to its first line and accepts it if it is a finite
// number or, ignoring case, "Unknown". Unknown is returned in canonical form.
func Validate(candidate string) (string, error) {
	if i := strings.IndexAny(candidate, "\r\n"); i >= 0 {
		candidate = candidate[:i]
	}
	candidate = strings.TrimSpace(candidate)

	if strings.EqualFold(candidate, models.UnknownValue) {
		return models.UnknownValue, nil
	}
	if _, err := ParseFloat(candidate); err != nil {
		return "", fmt.Errorf("%w: %q", errInvalidValue, candidate)
	}
	return candidate, nil
}

// ParseFloat parses s as a finite decimal number. Inf, NaN, hex floats and
// digit separators are rejected.
func ParseFloat(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty number")
	}
	if strings.ContainsAny(s, "_xXpP") {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

var (
	defaultOnce sync.Once
	defaultExt  *Extractor
)

// Value extracts with the default "__" delimiter.
func Value(raw string) string {
	defaultOnce.Do(func() { defaultExt = New(models.DefaultDelimiter) })
	return defaultExt.Value(raw)
}
