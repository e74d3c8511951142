package kin

import (
	"strings"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titler = cases.Title(language.Und)

// Label returns the Go-facing entity label for a snake_case table name,
// e.g. "category_post" becomes "CategoryPost". Used in error messages.
func Label(name string) string {
	return inflect.Camelize(name)
}

// Title returns a humanized title for a snake_case name,
// e.g. "category_post" becomes "Category Post". Relation errors use it so
// table pairs read as prose.
func Title(name string) string {
	return titler.String(strings.ReplaceAll(name, "_", " "))
}

// Singular returns the singular form of a table name, used when labeling a
// single row of a pluralized table.
func Singular(name string) string {
	return inflect.Singularize(name)
}
