// internal/wire/decimal.go
package wire

import (
	"math"
	"strconv"
	"strings"
)

// appendFixed appends v with prec fraction digits, rounding half away from
// zero on the shortest decimal form of the widened value. This matches the
// vehicle firmware's "%.Nf" output, so 3.25 encodes as "3.3".
func appendFixed(dst []byte, v float32, prec int) []byte {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.AppendFloat(dst, f, 'f', prec, 32)
	}

	intPart, frac, _ := strings.Cut(strconv.FormatFloat(math.Abs(f), 'f', -1, 64), ".")

	if len(frac) > prec {
		up := frac[prec] >= '5'
		frac = frac[:prec]
		if up {
			d := []byte(intPart + frac)
			i := len(d) - 1
			for ; i >= 0; i-- {
				if d[i] != '9' {
					d[i]++
					break
				}
				d[i] = '0'
			}
			if i < 0 {
				d = append([]byte{'1'}, d...)
			}
			intPart, frac = string(d[:len(d)-prec]), string(d[len(d)-prec:])
		}
	}

	if math.Signbit(f) {
		dst = append(dst, '-')
	}
	dst = append(dst, intPart...)
	if prec == 0 {
		return dst
	}
	dst = append(dst, '.')
	dst = append(dst, frac...)
	for n := len(frac); n < prec; n++ {
		dst = append(dst, '0')
	}
	return dst
}
