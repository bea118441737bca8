package secret

import "strings"

// MaskEmail keeps the first character of the local part and the domain:
// "alice@example.com" becomes "a****@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return MaskString(email, 0, 0)
	}
	local := email[:at]
	return local[:1] + strings.Repeat("*", max(len(local)-1, 1)) + email[at:]
}

// MaskPhone keeps a leading "+" and the last four digits.
func MaskPhone(phone string) string {
	digits := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	prefix := ""
	if strings.HasPrefix(phone, "+") {
		prefix = "+"
	}
	return prefix + MaskString(string(digits), 0, 4)
}

// MaskString replaces all but the first keepStart and last keepEnd bytes of s
// with '*'. Strings too short to keep anything are fully masked.
func MaskString(s string, keepStart, keepEnd int) string {
	if keepStart < 0 {
		keepStart = 0
	}
	if keepEnd < 0 {
		keepEnd = 0
	}
	if len(s) <= keepStart+keepEnd {
		return strings.Repeat("*", len(s))
	}
	return s[:keepStart] + strings.Repeat("*", len(s)-keepStart-keepEnd) + s[len(s)-keepEnd:]
}
