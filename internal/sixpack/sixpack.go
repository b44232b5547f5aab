// Package sixpack implements the 6-bit-per-byte key compression scheme
// used for short, common-alphabet cache keys: four 8-bit bytes pack into
// three 6-bit-aligned bytes. The 64-symbol alphabet intentionally excludes
// 'Q', 'Z' and 'z' so the packed form still sorts and compares with
// memcmp the same way the original string does.
package sixpack

// alphabet order matches fromsix in the original: index -> byte.
var fromSix = [64]byte{
	0, '-', '.', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', ':',
	'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N',
	'O', 'P', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', '_', 'a', 'b', 'c',
	'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o', 'p', 'q',
	'r', 's', 't', 'u', 'v', 'w', 'x', 'y',
}

var toSix [256]byte

func init() {
	for i, b := range fromSix {
		if i == 0 {
			continue
		}
		toSix[b] = byte(i)
	}
}

// Pack returns the sixpacked form of data and true, or (nil, false) if data
// contains a byte outside the sixpack alphabet. The caller is responsible
// for only calling Pack on keys it is willing to also store raw should
// packing fail.
func Pack(data []byte) ([]byte, bool) {
	dst := make([]byte, 0, (len(data)*6+7)/8)
	j := 0
	for i, b := range data {
		v := toSix[b]
		if v == 0 {
			return nil, false
		}
		switch i % 4 {
		case 0:
			dst = append(dst, v<<2)
			j++
		case 1:
			dst[j-1] |= v >> 4
			dst = append(dst, v<<4)
			j++
		case 2:
			dst[j-1] |= v >> 2
			dst = append(dst, v<<6)
			j++
		case 3:
			dst[j-1] |= v
		}
	}
	return dst, true
}

// Unpack reverses Pack. data must be a valid sixpacked blob produced by
// Pack (the trailing zero pad byte, if present, is trimmed).
func Unpack(data []byte) []byte {
	dst := make([]byte, 0, len(data)*8/6+1)
	k := 0
	for i, b := range data {
		switch k {
		case 0:
			dst = append(dst, fromSix[b>>2])
			k = 1
		case 1:
			dst = append(dst, fromSix[((data[i-1]<<4)|(b>>4))&63])
			k = 2
		default:
			dst = append(dst, fromSix[((data[i-1]<<2)|(b>>6))&63])
			dst = append(dst, fromSix[b&63])
			k = 0
		}
	}
	if n := len(dst); n > 0 && dst[n-1] == 0 {
		dst = dst[:n-1]
	}
	return dst
}
