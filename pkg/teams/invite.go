package teams

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// codeLength is the fixed length of generated invite codes
const codeLength = 6

// base36Max is 36^6, the size of the 6-character code space
const base36Max = 36 * 36 * 36 * 36 * 36 * 36

// GenerateCode derives a 6-character invite code from seed and the
// current timestamp. The alphabet is [0-9A-Z]. Codes are not unique by
// construction; callers rely on the store's unique constraint and
// regenerate on collision.
func GenerateCode(seed string) string {
	return generateCodeAt(seed, time.Now().UnixNano())
}

// generateCodeAt is deterministic given identical seed and timestamp,
// which the code tests depend on
func generateCodeAt(seed string, timestamp int64) string {
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s_%d", seed, timestamp)))
	prefix := hex.EncodeToString(digest[:])[:10]

	// 10 hex chars always fit in a uint64
	n, _ := strconv.ParseUint(prefix, 16, 64)
	code := strings.ToUpper(strconv.FormatUint(n%base36Max, 36))

	if len(code) < codeLength {
		code = strings.Repeat("0", codeLength-len(code)) + code
	}
	return code
}
