package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"
)

// NewNumber generates a human-facing invoice number such as
// INV-202608-K4D9W2QX. The suffix is random, so uniqueness is enforced by
// the database index and surfaced as a conflict on collision.
func NewNumber(now time.Time) string {
	suffix := strings.ToUpper(shortuuid.New())[:8]
	return fmt.Sprintf("INV-%s-%s", now.Format("200601"), suffix)
}
