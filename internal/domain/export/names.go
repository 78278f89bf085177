package export

import (
	"fmt"
	"time"
)

// StatementFileName is the fixed output name for bank statement runs.
const StatementFileName = "EXTRATO.csv"

// ReceiptFileName builds the output name for a tax receipt run,
// stamped so consecutive uploads by the same user never collide.
func ReceiptFileName(userID string, at time.Time) string {
	return fmt.Sprintf("PGTO_%s_%s.csv", userID, at.Format("20060102_150405"))
}
