package multicall

import "fmt"

// indexRange is an inclusive range of call indexes.
type indexRange struct {
	From int
	To   int
}

// splitRange splits [0, n) into consecutive ranges of at most size entries.
func splitRange(n, size int) ([]indexRange, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if n < 0 {
		return nil, fmt.Errorf("negative call count")
	}

	ranges := make([]indexRange, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size - 1
		if end >= n {
			end = n - 1
		}
		ranges = append(ranges, indexRange{From: start, To: end})
	}
	return ranges, nil
}
