package playstore

import "fmt"

// FormatDownloads turns a review count into the coarse label shown in the
// directory: 2_500_000 -> "2M+", 4_300 -> "4K+", 42 -> "42+".
func FormatDownloads(reviewCount int64) string {
	switch {
	case reviewCount >= 1_000_000:
		return fmt.Sprintf("%dM+", reviewCount/1_000_000)
	case reviewCount >= 1_000:
		return fmt.Sprintf("%dK+", reviewCount/1_000)
	}
	return fmt.Sprintf("%d+", reviewCount)
}
