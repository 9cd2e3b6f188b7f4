package qzone

import "strconv"

// DeriveGTK derives the g_tk signing token from the p_skey cookie value.
// It is the djb2-style rolling hash qzone's own JS computes, masked to a
// nonnegative 31-bit range. Deterministic, no I/O; an empty input yields 0.
func DeriveGTK(skey string) int64 {
	if skey == "" {
		return 0
	}
	h := uint32(5381)
	for _, r := range skey {
		h = h*33 + uint32(r)
	}
	return int64(h & 0x7FFFFFFF)
}

// gtkString is the query-parameter form of the token.
func gtkString(skey string) string {
	return strconv.FormatInt(DeriveGTK(skey), 10)
}
