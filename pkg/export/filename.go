package export

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var filenameReplacer = strings.NewReplacer(
	"!", ".",
	"@", "_at_",
	"#", "_no_",
	"$", "S",
	"%", "_per_",
	"?", ".",
	"&", "_and_",
	"+", "_and_",
	"*", "_",
	"~", "_in_",
	";", ".",
	":", ".",
	",", ".",
	"/", "-",
	"|", "-",
	"\\", "-",
	" ", "_",
	"'", "_",
	`"`, "_",
)

// SafeFilename strips accents, replaces characters that are awkward in file
// names and upper-cases the result: "Zoé D'Amour" -> "ZOE_D_AMOUR".
func SafeFilename(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, name)
	if err != nil {
		ascii = name
	}
	ascii = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '_'
		}
		return r
	}, ascii)
	return strings.ToUpper(filenameReplacer.Replace(ascii))
}

// CertificateFilename builds the stored name of one attendee's certificate.
func CertificateFilename(firstName, lastName, orderID string) string {
	return "Attestation_CQ_" + SafeFilename(firstName) + "_" + SafeFilename(lastName) + "_" + orderID + ".pdf"
}
