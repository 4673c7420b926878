package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// NumberToHex renders a 24-bit color as "#rrggbb".
func NumberToHex(n int) string {
	return fmt.Sprintf("#%06x", n&0xFFFFFF)
}

// HexToNumber parses "#rrggbb" or "#rgb" (leading '#' optional) into a 24-bit value.
func HexToNumber(s string) (int, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return 0, fmt.Errorf("color %q: want 6 hex digits", s)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("color %q: %w", s, err)
	}
	return int(n), nil
}
