package registry

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cskoven/go-flood-panel/internal/models"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

const registryCSV = `id,Country,ISO,Disaster Type,Disaster Subtype,Start Year,Start Month,Start Day,End Year,End Month,End Day,Total Affected,"Total Damage ('000 US$)","Total Damage, Adjusted ('000 US$)",Admin Units,data_processing_flags
2004-0481-CAN,Canada,CAN,Flood,Riverine flood,2004,7,15,2004,8,2,1000,500,600,"[{'adm1_code': 825, 'adm1_name': 'Ontario'}]",
2010-0001-BGD,Bangladesh,BGD,Flood,Coastal flood,2010,5,1,2010,5,9,2000,,,"[]",
2011-0002-IND,India,IND,Storm,,2011,6,1,2011,6,2,50,,,"[]",
2024-0003-USA,USA,USA,Flood,Riverine flood,2024,3,,2024,3,,10,1000,,"[]",7
2019-0004-PER,Peru,PER,Flood,,2019,,1,2019,4,2,5,,,"[]",
`

func TestLoad_ParsesAndDropsUndated(t *testing.T) {
	path := writeTempCSV(t, "registry.csv", registryCSV)

	records, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	// The Peru row has no start month and must be dropped.
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}

	rec := records[0]
	if rec.ID != "2004-0481-CAN" {
		t.Errorf("unexpected id %s", rec.ID)
	}
	if rec.StartDay == nil || *rec.StartDay != 15 {
		t.Errorf("expected start day 15, got %v", rec.StartDay)
	}
	if rec.TotalAffected != 1000 {
		t.Errorf("expected affected 1000, got %f", rec.TotalAffected)
	}
	if !math.IsNaN(records[1].TotalDamage) {
		t.Errorf("expected blank damage to be NaN, got %f", records[1].TotalDamage)
	}

	usa := records[3]
	if usa.StartDay != nil {
		t.Errorf("expected missing start day to stay nil, got %v", *usa.StartDay)
	}
	if len(usa.Notes) != 1 || usa.Notes[0] != "7" {
		t.Errorf("expected numeric note [7], got %v", usa.Notes)
	}
}

func TestPreprocess_InlandFloodsOnly(t *testing.T) {
	records := []*models.DisasterRecord{
		{ID: "a", DisasterType: "Flood", DisasterSubtype: "Riverine flood", StartYear: 2004},
		{ID: "b", DisasterType: "Flood", DisasterSubtype: "Coastal flood", StartYear: 2010},
		{ID: "c", DisasterType: "Storm", StartYear: 2011},
		{ID: "d", DisasterType: "Flood", StartYear: 2012},
	}

	out := Preprocess(records, 1.03)
	if len(out) != 2 {
		t.Fatalf("expected 2 inland floods, got %d", len(out))
	}
	if out[0].ID != "a" || out[1].ID != "d" {
		t.Errorf("unexpected subset: %s, %s", out[0].ID, out[1].ID)
	}
}

func TestPreprocess_Deflates2024Damages(t *testing.T) {
	rec := &models.DisasterRecord{
		ID: "e", DisasterType: "Flood", StartYear: 2024,
		TotalDamage: 1029.495111, TotalDamageAdj: math.NaN(),
	}

	out := Preprocess([]*models.DisasterRecord{rec}, 1.029495111)
	if got := out[0].TotalDamageAdj; math.Abs(got-1000) > 1e-9 {
		t.Errorf("expected adjusted damage 1000, got %f", got)
	}
}

const adm1CSV = `adm1_code,adm1_name,adm0_code,adm0_name
825,Ontario,46,Canada
826,Quebec,46,Canada
1492,Dhaka,23,Bangladesh
`

const adm2CSV = `adm2_code,adm2_name,adm1_code,adm1_name,adm0_name
9001,Toronto,825,Ontario,Canada
9002,Gazipur,1492,Dhaka,Bangladesh
9002,Gazipur Duplicate,9999,Bogus,Bangladesh
`

func loadTestBoundary(t *testing.T) *Boundary {
	t.Helper()
	b, err := LoadBoundary(
		writeTempCSV(t, "adm1.csv", adm1CSV),
		writeTempCSV(t, "adm2.csv", adm2CSV),
	)
	if err != nil {
		t.Fatalf("loading boundary: %v", err)
	}
	return b
}

func TestResolveUnits_NameLookup(t *testing.T) {
	b := loadTestBoundary(t)
	rec := &models.DisasterRecord{
		ID: "x", Country: "Canada",
		AdminUnitsRaw: "[{'adm1_name': 'Quebec'}]",
	}

	units, err := ResolveUnits(rec, b)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if units[0].Adm1Code != 826 {
		t.Errorf("expected code 826 from name lookup, got %d", units[0].Adm1Code)
	}
}

func TestResolveUnits_Adm2Parent(t *testing.T) {
	b := loadTestBoundary(t)
	rec := &models.DisasterRecord{
		ID: "y", Country: "Bangladesh",
		AdminUnitsRaw: "[{'adm2_code': 9002}]",
	}

	units, err := ResolveUnits(rec, b)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	// Duplicate adm2 code keeps the first reference row.
	if units[0].Adm1Code != 1492 || units[0].Adm1Name != "Dhaka" {
		t.Errorf("expected parent Dhaka/1492, got %+v", units[0])
	}
}

func TestResolveUnits_ParseFailure(t *testing.T) {
	b := loadTestBoundary(t)
	rec := &models.DisasterRecord{ID: "z", AdminUnitsRaw: "nope"}

	if _, err := ResolveUnits(rec, b); err == nil {
		t.Error("expected parse error")
	}
}

func TestReconcileCountry(t *testing.T) {
	if got := ReconcileCountry("Türkiye"); got != "Turkey" {
		t.Errorf("expected Turkey, got %s", got)
	}
	if got := ReconcileCountry("Canada"); got != "Canada" {
		t.Errorf("expected pass-through, got %s", got)
	}
}
