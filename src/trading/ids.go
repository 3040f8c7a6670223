package trading

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newEntityID builds ids like BUY_005930_20260311_161000_1a2b3c4d. The
// uuid suffix keeps ids unique when the same symbol fires twice within
// a second.
func newEntityID(prefix, symbol string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s", prefix, symbol, t.Format("20060102_150405"), uuid.NewString()[:8])
}
