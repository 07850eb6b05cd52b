package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

type office struct {
	code, name, emirateCode, emirateName string
	areas                                []string
}

var offices = []office{
	{"AUH01", "Abu Dhabi Main Office", "AUH", "Abu Dhabi", []string{"Al Khalidiyah", "Al Mushrif", "Khalifa City"}},
	{"AAN01", "Al Ain Office", "AUH", "Abu Dhabi", []string{"Al Jimi", "Al Towayya", "Zakher"}},
	{"DXB01", "Dubai Office", "DXB", "Dubai", []string{"Al Barsha", "Deira", "Mirdif"}},
	{"SHJ01", "Sharjah Office", "SHJ", "Sharjah", []string{"Al Nahda", "Al Qasimia", "Muwaileh"}},
	{"AJM01", "Ajman Office", "AJM", "Ajman", []string{"Al Nuaimiya", "Al Rashidiya"}},
	{"RAK01", "Ras Al Khaimah Office", "RAK", "Ras Al Khaimah", []string{"Al Nakheel", "Khuzam"}},
	{"FUJ01", "Fujairah Office", "FUJ", "Fujairah", []string{"Dibba", "Merashid"}},
	{"UAQ01", "Umm Al Quwain Office", "UAQ", "Umm Al Quwain", []string{"Al Salamah", "Al Raas"}},
}

type coded struct {
	code, desc string
}

var (
	categories = []coded{
		{"C01", "Elderly"}, {"C02", "Disability"}, {"C03", "Widow"}, {"C04", "Divorced woman"},
		{"C05", "Low income family"}, {"C06", "Orphan"}, {"C07", "Unemployed"},
	}
	educationLevels = []coded{
		{"E0", "Illiterate"}, {"E1", "Primary"}, {"E2", "Secondary"}, {"E3", "Diploma"}, {"E4", "Bachelor"}, {"E5", "Postgraduate"},
	}
	maritalStatuses = []coded{
		{"M1", "Single"}, {"M2", "Married"}, {"M3", "Divorced"}, {"M4", "Widowed"},
	}
	programGroups = []string{"Social Support", "Housing Support", "Education Support", "Emergency Relief"}
	programTypes  = []string{"Monthly", "One-time", "Quarterly"}
	caseTypes     = []string{"New", "Renewal", "Appeal"}
	incomeSources = []string{"None", "Pension", "Salary", "Rental income", "Private business", "Family support"}
)

type nationality struct {
	code, name, code3, code2 string
}

var nationalities = []nationality{
	{"UAE", "Emirati", "ARE", "AE"},
	{"OMN", "Omani", "OMN", "OM"},
	{"EGY", "Egyptian", "EGY", "EG"},
	{"JOR", "Jordanian", "JOR", "JO"},
	{"SYR", "Syrian", "SYR", "SY"},
	{"YEM", "Yemeni", "YEM", "YE"},
}

// Generator produces demo cases. The same seed and clock yield the same
// records.
type Generator struct {
	rnd      *rand.Rand
	sequence int64
	now      func() time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (g *Generator) Generate(n int) []CaseRecord {
	records := make([]CaseRecord, 0, max(n, 0))
	for i := 0; i < n; i++ {
		records = append(records, g.NextRecord())
	}
	return records
}

func (g *Generator) NextRecord() CaseRecord {
	g.sequence++
	now := g.now()

	o := offices[g.rnd.Intn(len(offices))]
	category := pickOne(g.rnd, categories)
	education := pickOne(g.rnd, educationLevels)
	marital := pickOne(g.rnd, maritalStatuses)
	nat := g.pickNationality()

	age := int64(18 + g.rnd.Intn(70))
	dob := now.AddDate(-int(age), 0, -g.rnd.Intn(365))
	approved := now.AddDate(0, 0, -g.rnd.Intn(3*365))

	male := g.rnd.Intn(2) == 0
	gender, genderArabic, genderEnglish := "F", "أنثى", "Female"
	if male {
		gender, genderArabic, genderEnglish = "M", "ذكر", "Male"
	}

	var wives int64
	if male && marital.code == "M2" {
		wives = int64(1 + g.rnd.Intn(2))
	}
	sons := int64(g.rnd.Intn(5))
	daughters := int64(g.rnd.Intn(5))
	sisters := int64(g.rnd.Intn(3))
	brothers := int64(g.rnd.Intn(3))
	noRelation := int64(g.rnd.Intn(2))

	amount := round2(1500 + g.rnd.Float64()*13500)
	percentage := round2(10 + g.rnd.Float64()*90)
	var refund float64
	if g.rnd.Intn(10) == 0 {
		refund = round2(amount * g.rnd.Float64() * 0.5)
	}

	return CaseRecord{
		CaseID:            fmt.Sprintf("CASE-%08d", g.sequence),
		OfficeCode:        o.code,
		OfficeName:        o.name,
		CategoryDesc:      category.desc,
		CategoryCode:      category.code,
		TownNo:            int64(100 + g.rnd.Intn(900)),
		FamilyNo:          fmt.Sprintf("FAM-%06d", g.rnd.Intn(1000000)),
		PersonDOB:         toEpochDays(dob),
		Age:               age,
		PersonMobileNo:    fmt.Sprintf("05%d%07d", g.rnd.Intn(10), g.rnd.Intn(10000000)),
		ApprovalDate:      toEpochDays(approved),
		PersonGender:      gender,
		GenderArabic:      genderArabic,
		GenderEnglish:     genderEnglish,
		AmountOfHelp:      amount,
		PercentageOfHelp:  percentage,
		RefundAmount:      refund,
		EmirateName:       o.emirateName,
		EmirateCode:       o.emirateCode,
		Area:              o.areas[g.rnd.Intn(len(o.areas))],
		PRGroup:           programGroups[g.rnd.Intn(len(programGroups))],
		Education:         education.desc,
		EducationCode:     education.code,
		MaritalDesc:       marital.desc,
		MaritalCode:       marital.code,
		LastPR:            programGroups[g.rnd.Intn(len(programGroups))],
		Nationality:       nat.code,
		NationalityName:   nat.name,
		Nationality3Code:  nat.code3,
		Nationality2Code:  nat.code2,
		TotalFamilyMember: 1 + wives + sons + daughters + sisters + brothers + noRelation,
		PersonWifes:       wives,
		PersonSons:        sons,
		PersonDaughters:   daughters,
		PersonNoRelation:  noRelation,
		PersonSisters:     sisters,
		PersonBrothers:    brothers,
		IncomeSources:     incomeSources[g.rnd.Intn(len(incomeSources))],
		PRType:            programTypes[g.rnd.Intn(len(programTypes))],
		CaseType:          caseTypes[g.rnd.Intn(len(caseTypes))],
	}
}

// Most recipients are citizens.
func (g *Generator) pickNationality() nationality {
	if g.rnd.Intn(100) < 80 {
		return nationalities[0]
	}
	return nationalities[1+g.rnd.Intn(len(nationalities)-1)]
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne[T any](r *rand.Rand, values []T) T {
	return values[r.Intn(len(values))]
}
