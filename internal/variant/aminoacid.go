// Package variant normalizes protein change notation and resolves hotspot positions.
package variant

// AminoAcidThreeToSingle converts a three letter amino acid code to its single letter code.
// Both Ter and Stop map to the stop symbol.
var AminoAcidThreeToSingle = map[string]byte{
	"Ala": 'A', "Cys": 'C', "Asp": 'D', "Glu": 'E',
	"Phe": 'F', "Gly": 'G', "His": 'H', "Ile": 'I',
	"Lys": 'K', "Leu": 'L', "Met": 'M', "Asn": 'N',
	"Pro": 'P', "Gln": 'Q', "Arg": 'R', "Ser": 'S',
	"Thr": 'T', "Val": 'V', "Trp": 'W', "Tyr": 'Y',
	"Ter": '*', "Stop": '*',
}

// aaSingle returns the single letter code for a one or three letter amino acid token.
func aaSingle(token string) (byte, bool) {
	switch len(token) {
	case 1:
		return token[0], true
	case 3, 4:
		aa, ok := AminoAcidThreeToSingle[token]
		return aa, ok
	}
	return 0, false
}
