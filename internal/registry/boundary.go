package registry

import (
	"fmt"

	"github.com/cskoven/go-flood-panel/internal/csvio"
)

// Adm1Info is one first-level administrative unit in the fixed boundary
// reference set.
type Adm1Info struct {
	Code     int
	Name     string
	Adm0Code int
	Adm0Name string
}

type adm2Info struct {
	Code     int
	Name     string
	Adm1Code int
	Adm1Name string
	Adm0Name string
}

// Boundary is the administrative-boundary code table at both levels, plus
// the name indexes used to resolve registry units that arrive without codes.
type Boundary struct {
	adm1ByCode map[int]Adm1Info
	adm2ByCode map[int]adm2Info

	adm1ByName map[string]map[string]int // country -> adm1 name -> code
	adm2ByName map[string]map[string]int // country -> adm2 name -> code
}

// countryNames reconciles registry country names that differ from the
// boundary reference's spelling.
var countryNames = map[string]string{
	"Türkiye": "Turkey",
	"Côte d’Ivoire":                         "Côte d'Ivoire",
	"Bolivia (Plurinational State of)":      "Bolivia",
	"Iran (Islamic Republic of)":            "Iran  (Islamic Republic of)",
	"Democratic People's Republic of Korea": "Dem People's Rep of Korea",
}

// ReconcileCountry maps a registry country name onto the boundary
// reference's spelling. Unlisted names pass through unchanged.
func ReconcileCountry(name string) string {
	if mapped, ok := countryNames[name]; ok {
		return mapped
	}
	return name
}

// LoadBoundary reads the two-level boundary reference tables. Duplicate
// admin-2 codes keep the first occurrence, mirroring the reference set's
// handful of duplicated rows.
func LoadBoundary(adm1Path, adm2Path string) (*Boundary, error) {
	b := &Boundary{
		adm1ByCode: make(map[int]Adm1Info),
		adm2ByCode: make(map[int]adm2Info),
		adm1ByName: make(map[string]map[string]int),
		adm2ByName: make(map[string]map[string]int),
	}

	t1, err := csvio.ReadFile(adm1Path)
	if err != nil {
		return nil, fmt.Errorf("loading adm1 reference: %w", err)
	}
	for _, row := range t1.Rows {
		code, ok := t1.Int(row, "adm1_code")
		if !ok {
			continue
		}
		info := Adm1Info{
			Code: code,
			Name: t1.Cell(row, "adm1_name"),
		}
		info.Adm0Code, _ = t1.Int(row, "adm0_code")
		info.Adm0Name = t1.Cell(row, "adm0_name")
		b.adm1ByCode[code] = info

		byName := b.adm1ByName[info.Adm0Name]
		if byName == nil {
			byName = make(map[string]int)
			b.adm1ByName[info.Adm0Name] = byName
		}
		if _, dup := byName[info.Name]; !dup {
			byName[info.Name] = code
		}
	}

	t2, err := csvio.ReadFile(adm2Path)
	if err != nil {
		return nil, fmt.Errorf("loading adm2 reference: %w", err)
	}
	for _, row := range t2.Rows {
		code, ok := t2.Int(row, "adm2_code")
		if !ok {
			continue
		}
		if _, dup := b.adm2ByCode[code]; dup {
			continue
		}
		info := adm2Info{
			Code:     code,
			Name:     t2.Cell(row, "adm2_name"),
			Adm1Name: t2.Cell(row, "adm1_name"),
			Adm0Name: t2.Cell(row, "adm0_name"),
		}
		info.Adm1Code, _ = t2.Int(row, "adm1_code")
		b.adm2ByCode[code] = info

		byName := b.adm2ByName[info.Adm0Name]
		if byName == nil {
			byName = make(map[string]int)
			b.adm2ByName[info.Adm0Name] = byName
		}
		if _, dup := byName[info.Name]; !dup {
			byName[info.Name] = code
		}
	}

	return b, nil
}

// Adm1 returns the admin-1 reference entry for a code.
func (b *Boundary) Adm1(code int) (Adm1Info, bool) {
	info, ok := b.adm1ByCode[code]
	return info, ok
}

// Adm1Parent resolves an admin-2 code to its parent admin-1 code and name.
func (b *Boundary) Adm1Parent(adm2Code int) (int, string, bool) {
	info, ok := b.adm2ByCode[adm2Code]
	if !ok {
		return 0, "", false
	}
	return info.Adm1Code, info.Adm1Name, true
}

// Adm1CodeByName resolves an admin-1 name within a registry country name.
func (b *Boundary) Adm1CodeByName(country, name string) (int, bool) {
	code, ok := b.adm1ByName[ReconcileCountry(country)][name]
	return code, ok
}

// Adm2CodeByName resolves an admin-2 name within a registry country name.
func (b *Boundary) Adm2CodeByName(country, name string) (int, bool) {
	code, ok := b.adm2ByName[ReconcileCountry(country)][name]
	return code, ok
}
