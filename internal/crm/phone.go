package crm

import "strings"

// NormalizeContactPhone converts a shared Telegram contact number into
// the +49 form used in the directory. "00" prefixes become "+", bare
// national numbers get +49 with the leading zero removed.
func NormalizeContactPhone(phone string) string {
	phone = strings.ReplaceAll(phone, " ", "")
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "00") {
		return "+" + phone[2:]
	}
	if !strings.HasPrefix(phone, "+") {
		return "+49" + strings.TrimPrefix(phone, "0")
	}
	return phone
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
