package rcrx

// analyzeRuns scans data bit by bit (MSB first within each byte) and
// returns the longest run of consecutive 0-bits and the longest run of
// consecutive 1-bits observed.
func analyzeRuns(data []byte) (maxZeroRun, maxOneRun int) {
	first := true
	var curBit byte
	var curRun int

	flush := func() {
		if curBit == 0 {
			if curRun > maxZeroRun {
				maxZeroRun = curRun
			}
		} else {
			if curRun > maxOneRun {
				maxOneRun = curRun
			}
		}
	}

	for _, by := range data {
		for bit := 7; bit >= 0; bit-- {
			v := (by >> uint(bit)) & 1
			if first {
				curBit, curRun, first = v, 1, false
				continue
			}
			if v == curBit {
				curRun++
				continue
			}
			flush()
			curBit, curRun = v, 1
		}
	}
	if !first {
		flush()
	}
	return maxZeroRun, maxOneRun
}

// candidateAccepted applies the detection rule to the longest runs
// reported by analyzeRuns: both polarities must show at least one run,
// and the run-length bias must match the candidate's inverted flag
// (0-runs dominate for an inverted line, otherwise 1-runs dominate).
// Only the longest run of each polarity is examined, so it checks that
// each polarity occurs at all, not that a run of exactly one 0-bit and
// a run of exactly one 1-bit are present.
func candidateAccepted(maxZeroRun, maxOneRun int, inverted bool) bool {
	if maxZeroRun < 1 || maxOneRun < 1 {
		return false
	}
	if inverted {
		return maxZeroRun > maxOneRun
	}
	return maxOneRun > maxZeroRun
}
