package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodeGenerator returns a candidate booking code. Candidates are not guaranteed to be
// unique; the ledger's unique constraint decides.
type CodeGenerator func(now time.Time) string

// NewCode builds codes like BK1740852000123A3F9C0 from the creation time and six
// random hex digits.
func NewCode(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("BK%d%s", now.UnixMilli(), strings.ToUpper(suffix))
}
