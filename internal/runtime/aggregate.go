package runtime

// Average returns the truncated mean of samples. ok is false when samples is
// empty.
//
// The sum is accumulated in 64 bits: MaxSamples values of at most 2^32-1 stay
// below 2^38, and the quotient never exceeds the largest sample.
func Average(samples []Sample) (avg Sample, ok bool) {
	if len(samples) == 0 {
		return 0, false
	}

	var sum uint64
	for _, s := range samples {
		sum += uint64(s)
	}
	return Sample(sum / uint64(len(samples))), true
}
