package mpegts

// TimestampDelta is (last - first) modulo 2^33, so a single wrap of the
// 33-bit clock between the two samples is absorbed.
func TimestampDelta(first, last uint64) uint64 {
	return (last - first) & (TimestampModulus - 1)
}

// SelectPID picks the PID with the most samples across both windows among
// PIDs present in both. Ties go to the PID seen first in head.
func SelectPID(head, tail []Sample) (uint16, bool) {
	tailCount := make(map[uint16]int)
	for _, sample := range tail {
		tailCount[sample.PID]++
	}

	headCount := make(map[uint16]int)
	order := make([]uint16, 0, 4)
	for _, sample := range head {
		if headCount[sample.PID] == 0 {
			order = append(order, sample.PID)
		}
		headCount[sample.PID]++
	}

	var selected uint16
	best := -1
	for _, pid := range order {
		if tailCount[pid] == 0 {
			continue
		}

		if score := headCount[pid] + tailCount[pid]; score > best {
			best = score
			selected = pid
		}
	}

	return selected, best >= 0
}

// EstimateFromSamples returns the duration in seconds spanned by the first
// head sample and the last tail sample of the selected PID. A zero span is
// reported as unknown.
func EstimateFromSamples(head, tail []Sample) (float64, bool) {
	pid, ok := SelectPID(head, tail)
	if !ok {
		return 0, false
	}

	var first, last uint64
	for _, sample := range head {
		if sample.PID == pid {
			first = sample.Value
			break
		}
	}
	for i := len(tail) - 1; i >= 0; i-- {
		if tail[i].PID == pid {
			last = tail[i].Value
			break
		}
	}

	delta := TimestampDelta(first, last)
	if delta == 0 {
		return 0, false
	}

	return float64(delta) / ClockRate, true
}
