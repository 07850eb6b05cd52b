package dataset

import "time"

// CaseRecord is one row of the cases table. Field order and parquet names
// follow schema.Columns. Dates are days since the Unix epoch.
type CaseRecord struct {
	CaseID            string  `parquet:"CASE_ID"`
	OfficeCode        string  `parquet:"office_code"`
	OfficeName        string  `parquet:"office_name"`
	CategoryDesc      string  `parquet:"category_desc"`
	CategoryCode      string  `parquet:"category_code"`
	TownNo            int64   `parquet:"Town_No"`
	FamilyNo          string  `parquet:"family_No"`
	PersonDOB         int32   `parquet:"person_DOB,date"`
	Age               int64   `parquet:"age"`
	PersonMobileNo    string  `parquet:"person_mobileNo"`
	ApprovalDate      int32   `parquet:"Approval_Date,date"`
	PersonGender      string  `parquet:"person_gender"`
	GenderArabic      string  `parquet:"GENDER_ARABIC"`
	GenderEnglish     string  `parquet:"GENDER_ENGLISH"`
	AmountOfHelp      float64 `parquet:"Amount_of_help"`
	PercentageOfHelp  float64 `parquet:"Percentage_of_help"`
	RefundAmount      float64 `parquet:"refund_amount"`
	EmirateName       string  `parquet:"person_emirate_name"`
	EmirateCode       string  `parquet:"person_emirate_code"`
	Area              string  `parquet:"area"`
	PRGroup           string  `parquet:"PR_GROUP"`
	Education         string  `parquet:"Education"`
	EducationCode     string  `parquet:"education_code"`
	MaritalDesc       string  `parquet:"marital_desc"`
	MaritalCode       string  `parquet:"marital_code"`
	LastPR            string  `parquet:"LAST_PR"`
	Nationality       string  `parquet:"Nationality"`
	NationalityName   string  `parquet:"nationality_name"`
	Nationality3Code  string  `parquet:"nationality_3_code"`
	Nationality2Code  string  `parquet:"nationality_2_code"`
	TotalFamilyMember int64   `parquet:"total_family_member"`
	PersonWifes       int64   `parquet:"person_wifes"`
	PersonSons        int64   `parquet:"person_sons"`
	PersonDaughters   int64   `parquet:"person_daughters"`
	PersonNoRelation  int64   `parquet:"person_no_relation"`
	PersonSisters     int64   `parquet:"person_sisters"`
	PersonBrothers    int64   `parquet:"person_brothers"`
	IncomeSources     string  `parquet:"INCOME_SOURCES"`
	PRType            string  `parquet:"PR_TYPE"`
	CaseType          string  `parquet:"Case_Type"`
}

func (r CaseRecord) DateOfBirth() time.Time {
	return fromEpochDays(r.PersonDOB)
}

func (r CaseRecord) ApprovedAt() time.Time {
	return fromEpochDays(r.ApprovalDate)
}

func toEpochDays(t time.Time) int32 {
	utc := t.UTC()
	day := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return int32(day.Unix() / 86400)
}

func fromEpochDays(days int32) time.Time {
	return time.Unix(int64(days)*86400, 0).UTC()
}
