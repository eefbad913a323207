package counter

import (
	"regexp"
	"sort"
	"strings"
)

type FilterKey string

const (
	KeySkills        FilterKey = "skills"
	KeyCity          FilterKey = "city"
	KeyWorkMode      FilterKey = "workMode"
	KeyMinExperience FilterKey = "minExperience"
)

// wireKeys maps filter keys to the aggregate endpoint's query parameters.
var wireKeys = map[FilterKey]string{
	KeySkills:        "skills",
	KeyCity:          "city",
	KeyWorkMode:      "work_mode",
	KeyMinExperience: "min_experience",
}

// ParseFilterKey accepts both the filter key and its wire name.
func ParseFilterKey(s string) (FilterKey, bool) {
	s = strings.TrimSpace(s)
	for k, wire := range wireKeys {
		if s == string(k) || s == wire {
			return k, true
		}
	}
	return "", false
}

// Filter holds only the keys the user has set. A present key with an empty
// list is legal and is dropped on serialization.
type Filter map[FilterKey][]string

// Patch is merged into a Filter; a nil value removes the key.
type Patch map[FilterKey][]string

func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (f Filter) Merge(p Patch) Filter {
	out := f.Clone()
	for k, v := range p {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = append([]string{}, v...)
	}
	return out
}

// ReferencesSkills reports whether serializing f needs the skill table.
func (f Filter) ReferencesSkills() bool {
	return len(compact(f[KeySkills])) > 0
}

var leadingNumber = regexp.MustCompile(`^\s*(\d+)`)

// LowerBound extracts the lower bound of an experience range such as
// "0-2 years", "5+ years" or "3". Empty when no number leads the string.
func LowerBound(s string) string {
	m := leadingNumber.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	n := strings.TrimLeft(m[1], "0")
	if n == "" {
		return "0"
	}
	return n
}

// Params translates f into the aggregate endpoint's query parameters. List
// values are joined with commas, skills go through canonical, and a zero
// experience bound is omitted. Empty values never reach the wire.
func Params(f Filter, canonical func(string) string) map[string]string {
	out := make(map[string]string, len(f))
	for key, values := range f {
		wire, ok := wireKeys[key]
		if !ok {
			continue
		}
		vals := compact(values)
		if len(vals) == 0 {
			continue
		}

		switch key {
		case KeyMinExperience:
			if b := LowerBound(vals[0]); b != "" && b != "0" {
				out[wire] = b
			}
		case KeySkills:
			if canonical != nil {
				for i, v := range vals {
					vals[i] = canonical(v)
				}
			}
			out[wire] = strings.Join(dedupe(vals), ",")
		default:
			out[wire] = strings.Join(dedupe(vals), ",")
		}
	}
	return out
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Keys returns the set keys in a stable order, for logs.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}
