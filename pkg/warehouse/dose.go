package warehouse

// ParseDoseCode splits an antigen code into its vaccine family and dose
// ordinal, e.g. DTPCV3 -> (DTPCV, 3). Only a single trailing digit 1-9 with
// a non-numeric prefix counts: codes with no digit suffix (BCG), multi-digit
// suffixes or bare digits carry no ordinal and are left unclassified rather
// than guessed.
func ParseDoseCode(code string) (family string, ordinal int, ok bool) {
	if len(code) < 2 {
		return "", 0, false
	}
	last := code[len(code)-1]
	if last < '1' || last > '9' {
		return "", 0, false
	}
	prev := code[len(code)-2]
	if prev >= '0' && prev <= '9' {
		return "", 0, false
	}
	return code[:len(code)-1], int(last - '0'), true
}
