package as2805

// defaultDescriptors is the built-in AS2805 data element table used when no
// dictionary file is configured.
var defaultDescriptors = []FieldDescriptor{
	{Index: 2, Type: LLVar, Length: 19, Description: "Primary account number"},
	{Index: 3, Type: Numeric, Length: 6, Description: "Processing code"},
	{Index: 4, Type: Numeric, Length: 12, Description: "Amount, transaction"},
	{Index: 5, Type: Numeric, Length: 12, Description: "Amount, settlement"},
	{Index: 6, Type: Numeric, Length: 12, Description: "Amount, cardholder billing"},
	{Index: 7, Type: Numeric, Length: 10, Description: "Transmission date and time"},
	{Index: 8, Type: Numeric, Length: 8, Description: "Amount, cardholder billing fee"},
	{Index: 9, Type: Numeric, Length: 8, Description: "Conversion rate, settlement"},
	{Index: 10, Type: Numeric, Length: 8, Description: "Conversion rate, cardholder billing"},
	{Index: 11, Type: Numeric, Length: 6, Description: "System trace audit number"},
	{Index: 12, Type: Numeric, Length: 6, Description: "Time, local transaction"},
	{Index: 13, Type: Numeric, Length: 4, Description: "Date, local transaction"},
	{Index: 14, Type: Numeric, Length: 4, Description: "Date, expiration"},
	{Index: 15, Type: Numeric, Length: 4, Description: "Date, settlement"},
	{Index: 16, Type: Numeric, Length: 4, Description: "Date, conversion"},
	{Index: 17, Type: Numeric, Length: 4, Description: "Date, capture"},
	{Index: 18, Type: Numeric, Length: 4, Description: "Merchant type"},
	{Index: 19, Type: Numeric, Length: 3, Description: "Acquiring institution country code"},
	{Index: 20, Type: Numeric, Length: 3, Description: "PAN extended, country code"},
	{Index: 21, Type: Numeric, Length: 3, Description: "Forwarding institution country code"},
	{Index: 22, Type: Numeric, Length: 3, Description: "Point of service entry mode"},
	{Index: 23, Type: Numeric, Length: 3, Description: "Card sequence number"},
	{Index: 24, Type: Numeric, Length: 3, Description: "Network international identifier"},
	{Index: 25, Type: Numeric, Length: 2, Description: "Point of service condition code"},
	{Index: 26, Type: Numeric, Length: 2, Description: "Point of service PIN capture code"},
	{Index: 27, Type: Numeric, Length: 1, Description: "Authorization identification response length"},
	{Index: 28, Type: Alpha, Length: 9, Description: "Amount, transaction fee"},
	{Index: 29, Type: Alpha, Length: 9, Description: "Amount, settlement fee"},
	{Index: 30, Type: Alpha, Length: 9, Description: "Amount, transaction processing fee"},
	{Index: 31, Type: Alpha, Length: 9, Description: "Amount, settlement processing fee"},
	{Index: 32, Type: LLVar, Length: 11, Description: "Acquiring institution identification code"},
	{Index: 33, Type: LLVar, Length: 11, Description: "Forwarding institution identification code"},
	{Index: 34, Type: LLVar, Length: 28, Description: "Primary account number, extended"},
	{Index: 35, Type: LLVar, Length: 37, Description: "Track 2 data"},
	{Index: 36, Type: LLLVar, Length: 104, Description: "Track 3 data"},
	{Index: 37, Type: Alpha, Length: 12, Description: "Retrieval reference number"},
	{Index: 38, Type: Alpha, Length: 6, Description: "Authorization identification response"},
	{Index: 39, Type: Alpha, Length: 2, Description: "Response code"},
	{Index: 40, Type: Alpha, Length: 3, Description: "Service restriction code"},
	{Index: 41, Type: Alpha, Length: 8, Description: "Card acceptor terminal identification"},
	{Index: 42, Type: Alpha, Length: 15, Description: "Card acceptor identification code"},
	{Index: 43, Type: Alpha, Length: 40, Description: "Card acceptor name and location"},
	{Index: 44, Type: LLVar, Length: 25, Description: "Additional response data"},
	{Index: 45, Type: LLVar, Length: 76, Description: "Track 1 data"},
	{Index: 46, Type: LLLVar, Length: 999, Description: "Additional data, ISO"},
	{Index: 47, Type: LLLVar, Length: 999, Description: "Additional data, national"},
	{Index: 48, Type: LLLVar, Length: 999, Description: "Additional data, private"},
	{Index: 49, Type: Numeric, Length: 3, Description: "Currency code, transaction"},
	{Index: 50, Type: Numeric, Length: 3, Description: "Currency code, settlement"},
	{Index: 51, Type: Numeric, Length: 3, Description: "Currency code, cardholder billing"},
	{Index: 52, Type: Binary, Length: 8, Description: "PIN data"},
	{Index: 53, Type: Numeric, Length: 16, Description: "Security related control information"},
	{Index: 54, Type: LLLVar, Length: 120, Description: "Additional amounts"},
	{Index: 55, Type: LLLVar, Length: 999, Description: "ICC system related data"},
	{Index: 56, Type: LLLVar, Length: 999, Description: "Reserved ISO"},
	{Index: 57, Type: LLLVar, Length: 999, Description: "Amount cash"},
	{Index: 58, Type: LLLVar, Length: 999, Description: "Ledger balance"},
	{Index: 59, Type: LLLVar, Length: 999, Description: "Account balance, cleared funds"},
	{Index: 60, Type: LLLVar, Length: 999, Description: "Reserved private"},
	{Index: 61, Type: LLLVar, Length: 999, Description: "Reserved private"},
	{Index: 62, Type: LLLVar, Length: 999, Description: "Reserved private"},
	{Index: 63, Type: LLLVar, Length: 999, Description: "Reserved private"},
	{Index: 64, Type: Binary, Length: 8, Description: "Message authentication code"},
	{Index: 65, Type: Binary, Length: 1, Description: "Extended bitmap indicator"},
	{Index: 66, Type: Numeric, Length: 1, Description: "Settlement code"},
	{Index: 67, Type: Numeric, Length: 2, Description: "Extended payment code"},
	{Index: 68, Type: Numeric, Length: 3, Description: "Receiving institution country code"},
	{Index: 69, Type: Numeric, Length: 3, Description: "Settlement institution country code"},
	{Index: 70, Type: Numeric, Length: 3, Description: "Network management information code"},
	{Index: 71, Type: Numeric, Length: 4, Description: "Message number"},
	{Index: 72, Type: Numeric, Length: 4, Description: "Message number, last"},
	{Index: 73, Type: Numeric, Length: 6, Description: "Date, action"},
	{Index: 74, Type: Numeric, Length: 10, Description: "Credits, number"},
	{Index: 75, Type: Numeric, Length: 10, Description: "Credits, reversal number"},
	{Index: 76, Type: Numeric, Length: 10, Description: "Debits, number"},
	{Index: 77, Type: Numeric, Length: 10, Description: "Debits, reversal number"},
	{Index: 78, Type: Numeric, Length: 10, Description: "Transfer, number"},
	{Index: 79, Type: Numeric, Length: 10, Description: "Transfer, reversal number"},
	{Index: 80, Type: Numeric, Length: 10, Description: "Inquiries, number"},
	{Index: 81, Type: Numeric, Length: 10, Description: "Authorizations, number"},
	{Index: 82, Type: Numeric, Length: 12, Description: "Credits, processing fee amount"},
	{Index: 83, Type: Numeric, Length: 12, Description: "Credits, transaction fee amount"},
	{Index: 84, Type: Numeric, Length: 12, Description: "Debits, processing fee amount"},
	{Index: 85, Type: Numeric, Length: 12, Description: "Debits, transaction fee amount"},
	{Index: 86, Type: Numeric, Length: 16, Description: "Credits, amount"},
	{Index: 87, Type: Numeric, Length: 16, Description: "Credits, reversal amount"},
	{Index: 88, Type: Numeric, Length: 16, Description: "Debits, amount"},
	{Index: 89, Type: Numeric, Length: 16, Description: "Debits, reversal amount"},
	{Index: 90, Type: Numeric, Length: 42, Description: "Original data elements"},
	{Index: 91, Type: Alpha, Length: 1, Description: "File update code"},
	{Index: 92, Type: Alpha, Length: 2, Description: "File security code"},
	{Index: 93, Type: Alpha, Length: 5, Description: "Response indicator"},
	{Index: 94, Type: Alpha, Length: 7, Description: "Service indicator"},
	{Index: 95, Type: Alpha, Length: 42, Description: "Replacement amounts"},
	{Index: 96, Type: Binary, Length: 8, Description: "Message security code"},
	{Index: 97, Type: Alpha, Length: 17, Description: "Amount, net settlement"},
	{Index: 98, Type: Alpha, Length: 25, Description: "Payee"},
	{Index: 99, Type: LLVar, Length: 11, Description: "Settlement institution identification code"},
	{Index: 100, Type: LLVar, Length: 11, Description: "Receiving institution identification code"},
	{Index: 101, Type: LLVar, Length: 17, Description: "File name"},
	{Index: 102, Type: LLVar, Length: 28, Description: "Account identification 1"},
	{Index: 103, Type: LLVar, Length: 28, Description: "Account identification 2"},
	{Index: 104, Type: LLLVar, Length: 100, Description: "Transaction description"},
	{Index: 105, Type: LLLVar, Length: 999, Description: "Reserved ISO"},
	{Index: 106, Type: LLLVar, Length: 999, Description: "Reserved ISO"},
	{Index: 107, Type: LLLVar, Length: 999, Description: "Reserved ISO"},
	{Index: 108, Type: LLLVar, Length: 999, Description: "Reserved ISO"},
	{Index: 109, Type: LLLVar, Length: 999, Description: "Reserved ISO"},
	{Index: 110, Type: LLLVar, Length: 999, Description: "Reserved ISO"},
	{Index: 111, Type: LLLVar, Length: 999, Description: "Reserved ISO"},
	{Index: 112, Type: LLLVar, Length: 999, Description: "Reserved national"},
	{Index: 113, Type: LLLVar, Length: 999, Description: "Reserved national"},
	{Index: 114, Type: LLLVar, Length: 999, Description: "Reserved national"},
	{Index: 115, Type: LLLVar, Length: 999, Description: "Reserved national"},
	{Index: 116, Type: LLLVar, Length: 999, Description: "Reserved national"},
	{Index: 117, Type: LLLVar, Length: 999, Description: "Reserved national"},
	{Index: 118, Type: LLLVar, Length: 999, Description: "Reserved national"},
	{Index: 119, Type: LLLVar, Length: 999, Description: "Reserved national"},
	{Index: 120, Type: LLLVar, Length: 999, Description: "Reserved private"},
	{Index: 121, Type: LLLVar, Length: 999, Description: "Reserved private"},
	{Index: 122, Type: LLLVar, Length: 999, Description: "Reserved private"},
	{Index: 123, Type: LLLVar, Length: 999, Description: "Reserved private"},
	{Index: 124, Type: LLLVar, Length: 999, Description: "Reserved private"},
	{Index: 125, Type: LLLVar, Length: 999, Description: "Reserved private"},
	{Index: 126, Type: LLLVar, Length: 999, Description: "Reserved private"},
	{Index: 127, Type: LLLVar, Length: 999, Description: "Reserved private"},
	{Index: 128, Type: Binary, Length: 8, Description: "Message authentication code"},
}

// DefaultDictionary returns the built-in dictionary covering fields 2-128
func DefaultDictionary() *Dictionary {
	d, err := NewDictionary(defaultDescriptors)
	if err != nil {
		panic("as2805: invalid built-in dictionary: " + err.Error())
	}
	return d
}
