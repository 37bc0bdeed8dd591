package util

// CeilDiv returns the ceiling of a/b for positive integers.
func CeilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
