package util

// IsValidEnum reports whether value is one of the allowed strings.
func IsValidEnum(value string, allowed []string) bool {
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}
