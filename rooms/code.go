package rooms

import (
	"crypto/rand"

	"github.com/judgegodwins/ludo-server/util"
)

// CodeGenerator returns candidate room codes. Collisions are handled by the
// caller.
type CodeGenerator func() (string, error)

// RandomCode draws util.RoomCodeLength symbols from util.RoomCodeAlphabet,
// discarding bytes that would bias the result.
func RandomCode() (string, error) {
	const letters = util.RoomCodeAlphabet
	const limit = byte(255 - (256 % len(letters)))

	n := util.RoomCodeLength
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}

		for _, b := range buf {
			if b <= limit {
				out = append(out, letters[int(b)%len(letters)])
				if len(out) == n {
					return string(out), nil
				}
			}
		}
	}

	return string(out), nil
}

// SequenceCodes hands out the given codes in order, then fails with
// ErrCodeSpace.
func SequenceCodes(codes ...string) CodeGenerator {
	i := 0
	return func() (string, error) {
		if i >= len(codes) {
			return "", ErrCodeSpace
		}
		code := codes[i]
		i++
		return code, nil
	}
}
