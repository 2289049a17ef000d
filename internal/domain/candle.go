package domain

// Candle is one time bucket of a symbol's price history.
type Candle struct {
	Start float64 // Bucket start in seconds
	Open  float64 // First price in the bucket
	High  float64 // Highest price in the bucket
	Low   float64 // Lowest price in the bucket
	Close float64 // Last price in the bucket
}
