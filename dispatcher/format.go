// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers.

package dispatcher

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// Retry-After em segundos inteiros, nunca abaixo de 1.
func formatRetryAfter(d time.Duration) string {
	s := int(d.Seconds())
	if s < 1 {
		s = 1
	}
	return formatInt(s)
}
