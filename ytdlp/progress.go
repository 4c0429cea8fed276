package ytdlp

import "strconv"

// ParseProgress extracts a progress percentage from one line of yt-dlp
// output. It anchors on the rightmost '%' and scans backward over ASCII
// digits and '.', so it tolerates whatever else the line carries (speed,
// ETA, fragment counters). Returns false when the line has no '%' or the
// preceding run does not parse as a number.
func ParseProgress(line string) (float64, bool) {
	percentIndex := -1
	for i := len(line) - 1; i >= 0; i-- {
		if line[i] == '%' {
			percentIndex = i
			break
		}
	}
	if percentIndex < 0 {
		return 0, false
	}

	start := percentIndex
	for start > 0 {
		ch := line[start-1]
		if (ch >= '0' && ch <= '9') || ch == '.' {
			start--
		} else {
			break
		}
	}

	value, err := strconv.ParseFloat(line[start:percentIndex], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
