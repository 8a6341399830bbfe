package modem

import (
	"context"

	"github.com/simcom-go/modem/at"
)

// getLocation runs the SIM800 +SAPBR/+CLBS coarse cell-location dance
// (spec.md §4.6 step 8). SIM7600 has no equivalent in this driver, so
// RequestLocation is a silent no-op on that model.
func (v *simcomVendor) getLocation(ctx context.Context) {
	if v.model != ModelSIM800 {
		return
	}

	if v.m.AT(ctx, "+CGATT=1") != atOK {
		return
	}
	if v.m.AT(ctx, `+SAPBR=3,1,"Contype","GPRS"`) != atOK {
		return
	}
	if v.m.ATFormat(ctx, `+SAPBR=3,1,"APN","%s"`, v.m.config.APN) != atOK {
		return
	}
	if v.m.AT(ctx, "+SAPBR=1,1") != atOK {
		return
	}

	if _, bypass := v.m.atLock(); bypass {
		return
	}

	var raw string
	v.m.at.nextResponse(func(hash at.EventID, fields at.Fields, line string) bool {
		if hash != hashCLBS {
			return false
		}
		raw = string(fields.Raw())
		return true
	}, 1)
	if v.m.sendLocked(ctx, "+CLBS=1,1") != atOK {
		return
	}

	// The second ATLock below is a no-op barrier: by the time sendLocked
	// returns OK, the RX goroutine has already processed every line up
	// to and including that OK strictly in order, so the +CLBS response
	// delegate above (which fires on the event line ahead of the OK)
	// has necessarily already run. It is kept only to mirror the
	// original driver's explicit post-fetch synchronization point, and is
	// released at once: lock() leaves the channel Pending, and
	// completeMask(1) returns it to OK without sending a command.
	v.m.at.lock()
	v.m.at.completeMask(1)

	code, lat, lon, ok := parseLocationFields(raw)
	if ok && code == 0 {
		v.m.mu.Lock()
		v.m.location = Location{Lat: lat, Lon: lon}
		v.m.mu.Unlock()
	}
}

// parseLocationFields splits a +CLBS response body of the form
// "code,lat,lon,acc" and converts lat/lon with parseLocationInt.
func parseLocationFields(raw string) (code, lat, lon int, ok bool) {
	parts := make([]string, 0, 4)
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	if len(parts) < 3 {
		return 0, 0, 0, false
	}
	code = parseLocationInt(parts[0])
	lat = parseLocationInt(parts[1])
	lon = parseLocationInt(parts[2])
	return code, lat, lon, true
}

// parseLocationInt parses a signed, possibly fixed-point decimal
// (e.g. "31.123456") into an integer by dropping the decimal point
// rather than scaling by a fixed power of ten, exactly as the original
// driver's ParseLocationToInt does — the resulting magnitude depends
// on however many fractional digits the modem sent.
func parseLocationInt(s string) int {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	res := 0
	for ; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		res = res*10 + int(c-'0')
	}
	if neg {
		res = -res
	}
	return res
}

var hashCLBS = at.HashString("+CLBS")
