package store

import (
	"encoding/json"
	"fmt"

	"cinecat/internal/failure"
	"cinecat/internal/record"
)

// MeasureFunc reports the encoded size of group. first is true for the group
// that opens the sequence, which may carry extra fields such as settings.
type MeasureFunc func(group []record.Wire, first bool) (int, error)

// Partitioner splits records into groups whose encoded size stays within
// Ceiling minus Reserved bytes.
type Partitioner struct {
	Ceiling  int
	Reserved int
}

// Split groups records in order, packing each group with the longest prefix
// of the remaining records that fits. overhead is the encoded size of a chunk
// with no records. The first guess comes from the size of the first record;
// later guesses use the measured average of the previous group.
func (p Partitioner) Split(records []record.Wire, overhead int, measure MeasureFunc) ([][]record.Wire, error) {
	if len(records) == 0 {
		return nil, nil
	}
	sample, err := json.Marshal(records[0])
	if err != nil {
		return nil, failure.Wrap(failure.ErrStorage, "store", "partition", "sample record", err)
	}
	limit := p.Ceiling - p.Reserved
	capacity := limit - overhead
	perRecord := float64(len(sample) + 1)

	var groups [][]record.Wire
	for start := 0; start < len(records); {
		guess := max(1, int(float64(capacity)/perRecord))
		n, size, err := longestFit(records[start:], guess, limit, len(groups) == 0, measure)
		if err != nil {
			return nil, err
		}
		groups = append(groups, records[start:start+n])
		start += n
		perRecord = float64(max(size-overhead, 1)) / float64(n)
	}
	return groups, nil
}

// longestFit returns the largest n for which rest[:n] encodes within limit,
// and that encoded size. The search starts at guess, grows by doubling while
// it fits, then bisects between the largest fitting and smallest failing
// counts.
func longestFit(rest []record.Wire, guess, limit int, first bool, measure MeasureFunc) (int, int, error) {
	lo, loSize := 0, 0
	hi := len(rest) + 1
	n := min(guess, len(rest))
	for lo+1 < hi {
		size, err := measure(rest[:n], first)
		if err != nil {
			return 0, 0, err
		}
		if size <= limit {
			lo, loSize = n, size
		} else {
			hi = n
		}
		if size <= limit && hi > len(rest) {
			n = min(n*2, len(rest))
			if n == lo {
				break
			}
			continue
		}
		n = lo + (hi-lo)/2
	}
	if lo == 0 {
		size, err := measure(rest[:1], first)
		if err != nil {
			return 0, 0, err
		}
		return 0, 0, failure.Wrap(failure.ErrStorage, "store", "partition",
			fmt.Sprintf("record %s needs %d bytes, limit is %d", rest[0].ID, size, limit), nil)
	}
	return lo, loSize, nil
}
