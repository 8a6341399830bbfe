package at

// EventID is the FNV-1a hash of an event's leading identifier, used to
// dispatch a received line without doing repeated string comparisons
// on the hot RX path (spec.md §4.2).
type EventID uint32

const (
	fnvOffsetBasis EventID = 2166136261
	fnvPrime       EventID = 16777619
)

func fnvStep(h EventID, c byte) EventID {
	h ^= EventID(c)
	h *= fnvPrime
	return h
}

// Hash computes the FNV-1a event identifier for line (a single line of
// modem output, without its trailing \r) and returns it together with
// the remainder of the line from which comma-delimited fields should
// be parsed.
//
// The scan applies three rules in order, exactly as spec.md §4.2
// describes:
//
//  1. If a comma appears and every preceding character was a decimal
//     digit, the prefix (the channel number) is discarded, an optional
//     following space is skipped, and the hash restarts — this folds
//     channel-prefixed forms like "0, CONNECT OK" onto the base event
//     "CONNECT OK".
//  2. Else, if a comma appears after non-digit characters, the comma
//     is included in the hash and scanning stops — this disambiguates
//     "+RECEIVE," from "+RECEIVE".
//  3. Else scanning stops at ':' (the start of the field region) or at
//     the end of the line.
//
// After the hash terminates, if the next character is ':' it is
// skipped along with one optional following space; the remainder
// becomes the field cursor.
func Hash(line []byte) (hash EventID, fields []byte) {
	h := fnvOffsetBasis
	digitsOnly := true
	i := 0

	for i < len(line) {
		c := line[i]

		if c == ',' {
			if digitsOnly {
				i++
				if i < len(line) && line[i] == ' ' {
					i++
				}
				h = fnvOffsetBasis
				digitsOnly = true
				continue
			}
			h = fnvStep(h, ',')
			i++
			break
		}

		if c == ':' {
			break
		}

		if c < '0' || c > '9' {
			digitsOnly = false
		}

		h = fnvStep(h, c)
		i++
	}

	rest := line[i:]
	if len(rest) > 0 && rest[0] == ':' {
		rest = rest[1:]
		if len(rest) > 0 && rest[0] == ' ' {
			rest = rest[1:]
		}
	}

	return h, rest
}

// HashString hashes a plain event name with no field region, useful
// for building the well-known constants below and in tests.
func HashString(s string) EventID {
	h, _ := Hash([]byte(s))
	return h
}

// Well-known event identifiers recognised at the core (§4.5) and
// vendor-overlay (§4.7) dispatch layers.
var (
	HashOK       = HashString("OK")
	HashError    = HashString("ERROR")
	HashCmeError = HashString("+CME ERROR")
	HashCmsError = HashString("+CMS ERROR")
)
