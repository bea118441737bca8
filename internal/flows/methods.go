package flows

// Method identifiers as stored in factor records.
const (
	MethodTOTP        = "totp"
	MethodSMS         = "sms"
	MethodEmail       = "email"
	MethodBackupCodes = "backup_codes"
)

// MethodOrder is the order in which methods are reported.
var MethodOrder = []string{MethodTOTP, MethodSMS, MethodEmail, MethodBackupCodes}

// IsContactMethod reports whether method delivers codes out of band and
// therefore uses the shared challenge slot.
func IsContactMethod(method string) bool {
	return method == MethodSMS || method == MethodEmail
}

// KnownMethod reports whether method is one of the four supported methods.
func KnownMethod(method string) bool {
	for _, m := range MethodOrder {
		if m == method {
			return true
		}
	}
	return false
}
