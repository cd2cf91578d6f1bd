package schema

import (
	"fmt"
	"strings"
)

// Date answers are produced by date pickers as YYYY-MM-DD but stored as
// MM/DD/YYYY, the format records have always been kept in.

// ToStorageDate turns an ISO date into its stored MM/DD/YYYY form. Values that
// are already stored, or that do not split into three parts, are returned
// unchanged.
func ToStorageDate(v string) string {
	if strings.Contains(v, "/") || !strings.Contains(v, "-") {
		return v
	}
	parts := strings.Split(v, "-")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return v
	}
	year, month, day := parts[0], parts[1], parts[2]
	return month + "/" + day + "/" + year
}

// ToDisplayDate turns a stored MM/DD/YYYY date into the zero-padded ISO form
// expected by date pickers. Anything else is returned unchanged.
func ToDisplayDate(v string) string {
	if !strings.Contains(v, "/") {
		return v
	}
	parts := strings.Split(v, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return v
	}
	month, day, year := parts[0], parts[1], parts[2]
	return fmt.Sprintf("%s-%s-%s", year, pad2(month), pad2(day))
}

func pad2(s string) string {
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}
	return s
}

// StorageValue normalizes a submitted value for storage. Only date fields
// are affected.
func (f Field) StorageValue(v string) string {
	if f.Type == Date {
		return ToStorageDate(v)
	}
	return v
}

// DisplayValue is the inverse of StorageValue.
func (f Field) DisplayValue(v string) string {
	if f.Type == Date {
		return ToDisplayDate(v)
	}
	return v
}
