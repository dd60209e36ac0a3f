package service

import (
	"strconv"
	"strings"
)

// HumanDuration 把秒数格式化为 "1d 2h 3m 4s"，省略为零的天、时、分，秒总是保留。
func HumanDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	var b strings.Builder
	days, rem := seconds/86400, seconds%86400
	hours, rem := rem/3600, rem%3600
	minutes, secs := rem/60, rem%60
	for _, part := range []struct {
		n    int
		unit string
	}{{days, "d"}, {hours, "h"}, {minutes, "m"}} {
		if part.n != 0 {
			b.WriteString(strconv.Itoa(part.n))
			b.WriteString(part.unit)
			b.WriteByte(' ')
		}
	}
	b.WriteString(strconv.Itoa(secs))
	b.WriteByte('s')
	return b.String()
}
