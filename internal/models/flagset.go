package models

import (
	"sort"
	"strconv"
	"strings"
)

// FlagCode is one documented data-quality or provenance condition. The code
// table is a published contract; values must never drift.
type FlagCode int

const (
	FlagStartDayInferred  FlagCode = 1  // start day missing, defaulted to 1
	FlagEndDayInferred    FlagCode = 2  // end day missing, defaulted to month end
	FlagPreSatelliteEra   FlagCode = 3  // event starts before the mask archive
	FlagMaskFileMissing   FlagCode = 4  // no flood mask raster, not explained by 3
	FlagPopGridMissing    FlagCode = 5  // no population grid for the admin unit
	FlagGridMismatch      FlagCode = 6  // mask and population grids misaligned
	FlagAdminManual       FlagCode = 7  // admin units georeferenced by hand upstream
	FlagAdminCountryLevel FlagCode = 8  // admin units placed at country level upstream
	FlagMissingDates      FlagCode = 9  // record dropped upstream: unresolvable dates
	FlagMissingAdmin      FlagCode = 10 // record dropped upstream: no admin-unit list
	FlagMissingOther      FlagCode = 11 // record dropped upstream: no specific reason
	FlagZeroFloodedArea   FlagCode = 12 // mask extracted but zero flooded pixels
	FlagEqualSplit        FlagCode = 13 // allocation policy 2
	FlagPopWeighted       FlagCode = 14 // allocation policy 1
	FlagMixedSplit        FlagCode = 15 // allocation policy 3
)

// FlagSet is an ascending, deduplicated list of flag codes. The zero value
// is an empty set.
type FlagSet []FlagCode

// Add returns the set with the given codes merged in, keeping order and
// uniqueness. The receiver is not modified.
func (s FlagSet) Add(codes ...FlagCode) FlagSet {
	out := append(FlagSet(nil), s...)
	out = append(out, codes...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	dedup := out[:0]
	for i, c := range out {
		if i == 0 || c != out[i-1] {
			dedup = append(dedup, c)
		}
	}
	return dedup
}

func (s FlagSet) Contains(code FlagCode) bool {
	for _, c := range s {
		if c == code {
			return true
		}
	}
	return false
}

// ContainsAny reports whether any of the given codes is present.
func (s FlagSet) ContainsAny(codes ...FlagCode) bool {
	for _, c := range codes {
		if s.Contains(c) {
			return true
		}
	}
	return false
}

// String renders the canonical semicolon-joined form, e.g. "1; 2; 12".
// An empty set renders as the empty string.
func (s FlagSet) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = strconv.Itoa(int(c))
	}
	return strings.Join(parts, "; ")
}

// ParseFlagSet reads a semicolon-separated flag string in any order, with
// any spacing and duplicates, into a canonical set. Blank segments are
// skipped; a non-numeric segment is an error.
func ParseFlagSet(raw string) (FlagSet, error) {
	var out FlagSet
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, FlagCode(n))
	}
	return FlagSet{}.Add(out...), nil
}
