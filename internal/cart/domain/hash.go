package domain

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ContentHash fingerprints the item, quantity and unit price of every line.
// Line order and ids do not affect the result.
func ContentHash(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for i := range lines {
		line := &lines[i]
		parts = append(parts, fmt.Sprintf("%d:%d:%d|%d|%s|%d",
			line.ProductID,
			line.VariationID,
			line.AffiliateProductID,
			line.Quantity,
			line.UnitPrice.StringFixed(4),
			line.PointsPrice,
		))
	}
	sort.Strings(parts)

	sum := blake2b.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}
