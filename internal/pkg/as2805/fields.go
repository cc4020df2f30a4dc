package as2805

// Data elements the switch reads or writes by name
const (
	FieldPAN                  = 2
	FieldProcessingCode       = 3
	FieldAmount               = 4
	FieldTransmissionDateTime = 7
	FieldSTAN                 = 11
	FieldLocalTime            = 12
	FieldLocalDate            = 13
	FieldRRN                  = 37
	FieldApprovalCode         = 38
	FieldResponseCode         = 39
	FieldTerminalID           = 41
	FieldMerchantID           = 42
	FieldNetworkMgmtCode      = 70
	FieldOriginalData         = 90
)

// TransmissionTimeLayout is the MMDDhhmmss layout of field 7
const TransmissionTimeLayout = "0102150405"

// ValidMTI reports whether s is a four digit message type indicator
func ValidMTI(s string) bool {
	if len(s) != MTILength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
