package voucher

import "fmt"

// FormatNumber renders a voucher number such as "SI/2024-25/0001".
func FormatNumber(prefix, fyLabel string, seq int) string {
	return fmt.Sprintf("%s/%s/%04d", prefix, fyLabel, seq)
}
