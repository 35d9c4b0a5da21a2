package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_NoDelimiter(t *testing.T) {
	for _, raw := range []string{
		"",
		"The depth is probably 200 meters.",
		"_5_ single underscores do not count",
		"__12.5 with no closing pair",
	} {
		assert.Equal(t, "Unknown", Value(raw), "raw=%q", raw)
	}
}

func TestValue_SingleNumber(t *testing.T) {
	assert.Equal(t, "12.5", Value("Reasoning... __12.5__"))
	assert.Equal(t, "0.0", Value("Surface sample, so __0.0__"))
	assert.Equal(t, "-3", Value("__ -3 __"))
	assert.Equal(t, "1e3", Value("roughly __1e3__ m"))
}

func TestValue_LastMatchWins(t *testing.T) {
	assert.Equal(t, "Unknown", Value("__5__ more text __Unknown__"))
	assert.Equal(t, "200", Value("Between __100__ and __300__, I estimate __200__"))
}

func TestValue_InvalidCandidateFallsBack(t *testing.T) {
	assert.Equal(t, "Unknown", Value("__deep__"))
	assert.Equal(t, "Unknown", Value("__200-1000__"))
	assert.Equal(t, "Unknown", Value("__NaN__"))
	assert.Equal(t, "Unknown", Value("__Inf__"))
	assert.Equal(t, "Unknown", Value("__0x1p3__"))
	assert.Equal(t, "Unknown", Value("____"))
}

func TestValue_UnknownIsCanonical(t *testing.T) {
	assert.Equal(t, "Unknown", Value("__unknown__"))
	assert.Equal(t, "Unknown", Value("__ UNKNOWN __"))
}

func TestValue_SpanStaysOnOneLine(t *testing.T) {
	assert.Equal(t, "Unknown", Value("answer: __42\nbecause the zone is deep__"))
	assert.Equal(t, "Unknown", Value("__\n42__"))
}

func TestValue_StrayDelimiterInReasoning(t *testing.T) {
	raw := "The column __depth is measured in meters.\nFinal answer: __12.5__"
	assert.Equal(t, "12.5", Value(raw))
	assert.Equal(t, []string{"12.5"}, New("").Candidates(raw))
}

func TestExtractor_CustomDelimiter(t *testing.T) {
	e := New("_")
	assert.Equal(t, "_", e.Delimiter())
	assert.Equal(t, "7", e.Value("value _7_"))

	e = New("$$")
	assert.Equal(t, "3.5", e.Value("result $$3.5$$"))
	assert.Equal(t, "Unknown", e.Value("result __3.5__"))
}

func TestExtractor_EmptyDelimiterDefaults(t *testing.T) {
	e := New("")
	assert.Equal(t, "__", e.Delimiter())
}

func TestExtract_KeepsRaw(t *testing.T) {
	raw := "Reasoning... __12.5__"
	r := New("__").Extract(raw)
	assert.Equal(t, Result{Value: "12.5", Raw: raw}, r)
}

func TestCandidates_InOrder(t *testing.T) {
	got := New("__").Candidates("__a__ x __b__ y __c__")
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Empty(t, New("__").Candidates("nothing here"))
}

func TestValue_NeverLeaksDelimiterOrFreeText(t *testing.T) {
	inputs := []string{
		"__5__ __x__",
		"__ __",
		"text __1__2__ text",
		"__12.5 meters__",
		"____5____",
	}
	for _, raw := range inputs {
		v := Value(raw)
		require.NotEmpty(t, v)
		assert.NotContains(t, v, "__")
		if v != "Unknown" {
			_, err := ParseFloat(v)
			assert.NoError(t, err, "raw=%q value=%q", raw, v)
		}
	}
}

func TestValidate(t *testing.T) {
	v, err := Validate("  12  ")
	require.NoError(t, err)
	assert.Equal(t, "12", v)

	_, err = Validate("deep")
	assert.ErrorIs(t, err, errInvalidValue)
}

func TestParseFloat(t *testing.T) {
	f, err := ParseFloat("2.50")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, f, 1e-9)

	for _, s := range []string{"", "1_000", "0x10", "inf", "-Inf", "nan", "abc", "1,5"} {
		_, err := ParseFloat(s)
		assert.Error(t, err, "s=%q", s)
	}
}
