// Package region resolves the acceptable state set of a solicitation and
// normalizes place names for exact-match comparison.
package region

import (
	_ "embed"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lease-match/internal/model"
)

//go:embed regions.yaml
var defaultRegionsYAML []byte

// Region is a named set of acceptable states.
type Region struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	States  []string `yaml:"states"`
}

// Table maps normalized region names and aliases to state sets.
type Table struct {
	regions map[string]*Region
}

// Default returns the embedded region table.
func Default() *Table {
	t, err := Parse(defaultRegionsYAML)
	if err != nil {
		panic(eris.Wrap(err, "region: embedded table"))
	}
	return t
}

// Load reads a region table from a YAML file. An empty path returns the
// embedded default.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: read %s", path)
	}
	return Parse(data)
}

// Parse builds a table from YAML bytes.
func Parse(data []byte) (*Table, error) {
	var doc struct {
		Regions []Region `yaml:"regions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "region: parse table")
	}

	t := &Table{regions: make(map[string]*Region, len(doc.Regions))}
	for i := range doc.Regions {
		r := &doc.Regions[i]
		if r.Name == "" {
			return nil, eris.Errorf("region: entry %d has no name", i)
		}
		states := make([]string, 0, len(r.States))
		for _, s := range r.States {
			code := NormalizeState(s)
			if code == "" {
				return nil, eris.Errorf("region: %s: unknown state %q", r.Name, s)
			}
			states = append(states, code)
		}
		r.States = states
		for _, key := range append([]string{r.Name}, r.Aliases...) {
			t.regions[Fold(key)] = r
		}
	}
	return t, nil
}

// Lookup returns the region registered under name or one of its aliases.
func (t *Table) Lookup(name string) (*Region, bool) {
	r, ok := t.regions[Fold(name)]
	return r, ok
}

// Len returns the number of distinct regions.
func (t *Table) Len() int {
	seen := make(map[*Region]bool)
	for _, r := range t.regions {
		seen[r] = true
	}
	return len(seen)
}

// AcceptableStates returns the normalized state codes the opportunity accepts:
// its own state, any explicit acceptable states and the states of its named
// region. Unknown region names contribute nothing.
func (t *Table) AcceptableStates(o *model.Opportunity) []string {
	set := make(map[string]bool)
	add := func(s string) {
		if code := NormalizeState(s); code != "" {
			set[code] = true
		}
	}
	add(o.State)
	for _, s := range o.AcceptableStates {
		add(s)
	}
	if o.Region != "" && t != nil {
		if r, ok := t.Lookup(o.Region); ok {
			for _, s := range r.States {
				set[s] = true
			}
		}
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Fold lowercases s, strips diacritics and collapses punctuation and
// whitespace to single spaces.
func Fold(s string) string {
	// Transformers and casers carry state; build fresh ones per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)

	var b strings.Builder
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case r == '.' || r == '\'':
			// "D.C." -> "dc", "O'Fallon" -> "ofallon"
		default:
			space = true
		}
	}
	return b.String()
}

// NormalizeCity folds a city name for exact comparison.
func NormalizeCity(city string) string {
	c := Fold(city)
	if strings.HasPrefix(c, "saint ") {
		c = "st " + strings.TrimPrefix(c, "saint ")
	}
	return c
}

// NormalizeState returns the USPS code for a state code or full name, or ""
// when unknown.
func NormalizeState(s string) string {
	f := Fold(s)
	if f == "" {
		return ""
	}
	if len(f) == 2 {
		code := strings.ToUpper(f)
		if _, ok := stateNames[code]; ok {
			return code
		}
	}
	if code, ok := stateCodes[f]; ok {
		return code
	}
	return ""
}

// SameState reports whether a and b normalize to the same known state.
func SameState(a, b string) bool {
	ca := NormalizeState(a)
	return ca != "" && ca == NormalizeState(b)
}

var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "DC": "District of Columbia",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho", "IL": "Illinois",
	"IN": "Indiana", "IA": "Iowa", "KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana",
	"ME": "Maine", "MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma", "OR": "Oregon",
	"PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina", "SD": "South Dakota",
	"TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont", "VA": "Virginia",
	"WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
	"PR": "Puerto Rico", "GU": "Guam", "VI": "Virgin Islands", "AS": "American Samoa",
	"MP": "Northern Mariana Islands",
}

var stateCodes = func() map[string]string {
	m := make(map[string]string, len(stateNames)+2)
	for code, name := range stateNames {
		m[Fold(name)] = code
	}
	m["washington dc"] = "DC"
	m["dc"] = "DC"
	return m
}()
