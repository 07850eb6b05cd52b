package schema

import (
	"fmt"
	"strings"
	"sync"
)

// TableName is the relation every case column lives in.
const TableName = "cases"

type ColumnType string

const (
	TypeText    ColumnType = "VARCHAR"
	TypeInteger ColumnType = "BIGINT"
	TypeDecimal ColumnType = "DOUBLE"
	TypeDate    ColumnType = "DATE"
)

type Column struct {
	Name        string
	Description string
	Type        ColumnType
}

var columns = []Column{
	{Name: "CASE_ID", Description: "Unique identifier for each case", Type: TypeText},
	{Name: "office_code", Description: "Code representing the office location", Type: TypeText},
	{Name: "office_name", Description: "Name of the office location", Type: TypeText},
	{Name: "category_desc", Description: "Description of the benefit category", Type: TypeText},
	{Name: "category_code", Description: "Code representing the benefit category", Type: TypeText},
	{Name: "Town_No", Description: "Town identification number", Type: TypeInteger},
	{Name: "family_No", Description: "Unique identifier for the family", Type: TypeText},
	{Name: "person_DOB", Description: "Date of birth of the individual", Type: TypeDate},
	{Name: "age", Description: "Age of the individual", Type: TypeInteger},
	{Name: "person_mobileNo", Description: "Mobile number of the individual", Type: TypeText},
	{Name: "Approval_Date", Description: "Date when the benefit was approved", Type: TypeDate},
	{Name: "person_gender", Description: "Gender of the individual", Type: TypeText},
	{Name: "GENDER_ARABIC", Description: "Gender in Arabic", Type: TypeText},
	{Name: "GENDER_ENGLISH", Description: "Gender in English", Type: TypeText},
	{Name: "Amount_of_help", Description: "Amount of financial aid provided", Type: TypeDecimal},
	{Name: "Percentage_of_help", Description: "Percentage of total assistance allocated", Type: TypeDecimal},
	{Name: "refund_amount", Description: "Amount to be refunded", Type: TypeDecimal},
	{Name: "person_emirate_name", Description: "Name of the individual's emirate", Type: TypeText},
	{Name: "person_emirate_code", Description: "Code representing the individual's emirate", Type: TypeText},
	{Name: "area", Description: "Area of residence", Type: TypeText},
	{Name: "PR_GROUP", Description: "Group classification for the benefit program", Type: TypeText},
	{Name: "Education", Description: "Educational qualification of the individual", Type: TypeText},
	{Name: "education_code", Description: "Code representing education level", Type: TypeText},
	{Name: "marital_desc", Description: "Marital status description", Type: TypeText},
	{Name: "marital_code", Description: "Code representing marital status", Type: TypeText},
	{Name: "LAST_PR", Description: "Last benefit program received", Type: TypeText},
	{Name: "Nationality", Description: "Nationality of the individual", Type: TypeText},
	{Name: "nationality_name", Description: "Full name of the individual's nationality", Type: TypeText},
	{Name: "nationality_3_code", Description: "3-letter nationality code", Type: TypeText},
	{Name: "nationality_2_code", Description: "2-letter nationality code", Type: TypeText},
	{Name: "total_family_member", Description: "Total number of family members", Type: TypeInteger},
	{Name: "person_wifes", Description: "Number of wives the individual has", Type: TypeInteger},
	{Name: "person_sons", Description: "Number of sons", Type: TypeInteger},
	{Name: "person_daughters", Description: "Number of daughters", Type: TypeInteger},
	{Name: "person_no_relation", Description: "Number of individuals with no direct relation", Type: TypeInteger},
	{Name: "person_sisters", Description: "Number of sisters", Type: TypeInteger},
	{Name: "person_brothers", Description: "Number of brothers", Type: TypeInteger},
	{Name: "INCOME_SOURCES", Description: "Sources of income", Type: TypeText},
	{Name: "PR_TYPE", Description: "Type of benefit program", Type: TypeText},
	{Name: "Case_Type", Description: "Type of case", Type: TypeText},
}

const (
	nameWidth        = 21
	descriptionWidth = 47
)

var rendered = sync.OnceValue(func() string {
	var b strings.Builder
	writeRow(&b, "Column Name", "Description")
	b.WriteString("|" + strings.Repeat("-", nameWidth+2) + "|" + strings.Repeat("-", descriptionWidth+2) + "|\n")
	for _, column := range columns {
		writeRow(&b, column.Name, column.Description)
	}
	return strings.TrimSuffix(b.String(), "\n")
})

// Context returns the data dictionary as a Markdown table. The value is
// identical on every call.
func Context() string {
	return rendered()
}

// Columns returns a copy of the case columns in dictionary order.
func Columns() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

// CreateTableSQL returns DDL for an empty cases table.
func CreateTableSQL() string {
	defs := make([]string, 0, len(columns))
	for _, column := range columns {
		defs = append(defs, "\t"+QuoteIdent(column.Name)+" "+string(column.Type))
	}
	return "CREATE TABLE IF NOT EXISTS " + QuoteIdent(TableName) + " (\n" + strings.Join(defs, ",\n") + "\n)"
}

func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func writeRow(b *strings.Builder, name, description string) {
	fmt.Fprintf(b, "| %-*s | %-*s |\n", nameWidth, name, descriptionWidth, description)
}
