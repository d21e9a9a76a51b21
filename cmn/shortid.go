package cmn

import (
	"encoding/hex"
	"math/rand"

	"github.com/teris-io/shortid"
	"go.uber.org/atomic"
)

// idABC seeds the shortid alphabet used below; it only needs to be a
// distinct-character set long enough for shortid's own tick/worker/random
// encoding, not the 0x3f-sized alphabet a base64-style tie-breaker would
// need (there is no tie-breaker here, see etagTick).
const idABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sid      *shortid.Shortid
	etagTick atomic.Uint64
)

func init() {
	// seed is not security sensitive here: the generator backs opaque
	// ETags, never auth material.
	sid = shortid.MustNew(4 /*worker*/, idABC, uint64(rand.Int63()))
}

// etagSuffix mints the variable part of a NewETag value: an Azure-shaped
// run of hex digits (real Azure ETags look like `0x8D8F...`), built from a
// shortid token folded into bytes plus a per-process monotonic tick so two
// ETags minted within the same generator tick still differ.
func etagSuffix() string {
	token := []byte(sid.MustGenerate())
	tick := etagTick.Add(1)
	buf := make([]byte, 8+len(token))
	for i := 0; i < 8; i++ {
		buf[i] = byte(tick >> (8 * uint(7-i)))
	}
	copy(buf[8:], token)
	return hex.EncodeToString(buf)
}
