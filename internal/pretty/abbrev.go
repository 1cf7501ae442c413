// Package pretty formats values for log output.
package pretty

import "fmt"

// Abbrev returns a formatter for s that cuts it short when it exceeds
// maxLen. Optional ranges are (maxLen) or (maxLen, cutTo), the default is
// (64, 60).
func Abbrev(s string, ranges ...int) Abbreviated {
	maxLen, cutTo := 64, 60
	if len(ranges) >= 2 {
		maxLen, cutTo = ranges[0], ranges[1]
	} else if len(ranges) == 1 {
		maxLen, cutTo = ranges[0], ranges[0]
	}
	if cutTo > maxLen {
		cutTo = maxLen
	}
	return Abbreviated{
		Original: s,
		MaxLen:   maxLen,
		CutTo:    cutTo,
	}
}

// Abbreviated is a string that is shortened when formatted.
type Abbreviated struct {
	Original string
	MaxLen   int
	CutTo    int
}

func (s Abbreviated) String() string {
	if len(s.Original) > s.MaxLen {
		return fmt.Sprintf("%s… (%d bytes)", s.Original[:s.CutTo], len(s.Original))
	}
	return s.Original
}
