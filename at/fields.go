package at

// Fields is a cursor over the comma-delimited field region of a line,
// the part left over after Hash has consumed the event identifier
// (spec.md §4.2). It is deliberately a value type over a byte slice:
// copying a Fields cursor (as NextATResponse delegates routinely do,
// to remember "the fields as they stood when the response arrived")
// is just a slice copy.
type Fields []byte

// Count returns the number of comma-delimited fields remaining,
// including a trailing empty field after a final comma. An empty
// cursor has zero fields.
func (f Fields) Count() int {
	if len(f) == 0 {
		return 0
	}
	n := 1
	for _, c := range f {
		if c == ',' {
			n++
		}
	}
	return n
}

// Num parses a signed decimal (or, with base 16, hex) integer from the
// front of the cursor, advancing past the consumed field. It returns
// false unless at least one digit was seen and no stray non-digit
// character appeared before the next comma or end of line — the
// parser either consumes a clean field or reports failure, it never
// silently ignores trailing garbage (spec.md §4.2).
func (f *Fields) Num(base int) (int, bool) {
	rest := []byte(*f)
	i := 0
	neg := false

	if i < len(rest) && (rest[i] == '+' || rest[i] == '-') {
		neg = rest[i] == '-'
		i++
	}

	hasDigit := false
	errored := false
	res := 0

	for i < len(rest) {
		c := rest[i]
		var digit int
		switch {
		case c >= '0' && c <= '9':
			digit = int(c - '0')
		case c >= 'a' && c <= 'z':
			digit = int(c-'a') + 10
		case c >= 'A' && c <= 'Z':
			digit = int(c-'A') + 10
		default:
			goto tail
		}
		if digit >= base {
			errored = true
			goto tail
		}
		res = res*base + digit
		hasDigit = true
		i++
	}

tail:
	for i < len(rest) {
		eof := rest[i] == ','
		i++
		if eof {
			break
		}
		errored = true
	}

	*f = Fields(rest[i:])
	if neg {
		res = -res
	}
	return res, hasDigit && !errored
}

// Hex parses a field as a base-16 integer.
func (f *Fields) Hex() (int, bool) {
	return f.Num(16)
}

// Fnv consumes one comma-delimited field and returns its FNV-1a hash,
// used to dispatch on a keyword sub-field (e.g. the "DATA"/"LEN"
// discriminator of +CCHRECV, spec.md §4.7).
func (f *Fields) Fnv() EventID {
	rest := []byte(*f)
	h := fnvOffsetBasis
	i := 0
	for i < len(rest) {
		c := rest[i]
		i++
		if c == ',' {
			break
		}
		h = fnvStep(h, c)
	}
	*f = Fields(rest[i:])
	return h
}

// Raw returns the remaining unparsed bytes, without advancing the
// cursor. Used by handlers that need to consume the rest of the line
// verbatim (e.g. a location string following "+CLBS: ").
func (f Fields) Raw() []byte {
	return []byte(f)
}
