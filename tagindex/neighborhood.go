package tagindex

// bases is the alphabet over which hamming substitutions and indel
// insertions are generated.
var bases = [4]byte{'A', 'C', 'G', 'T'}

// generateNeighbors enumerates every sequence within a mismatch budget M,
// an indel budget I, and a total budget T of seq (T <= M+I; T == 0 means
// "set T = M+I"). The result maps each generated variant to its error
// distance, the minimum number of edits used by any path that produced
// it. seq itself is never present in the result.
//
// The recursive approach mirrors the reference tool's
// generate_hamming_mismatches / generate_indels / combined-budget walk:
// indels are applied first (up to min(I,T)), then hamming substitutions
// are applied both to the original sequence (up to M) and to every indel
// result (up to the residual total budget), and a hamming-only pass from
// the original sequence up to M rounds things out.
func generateNeighbors(seq string, mismatch, indel, total int) map[string]int {
	if total == 0 {
		total = mismatch + indel
	}
	if indel > total {
		indel = total
	}
	if mismatch > total {
		mismatch = total
	}

	results := map[string]int{}
	observe := func(variant string, used int) {
		if variant == seq {
			return
		}
		if prev, ok := results[variant]; !ok || used < prev {
			results[variant] = used
		}
	}

	if indel == 0 {
		walkHamming(seq, seq, mismatch, 0, nil, observe)
		delete(results, seq)
		return results
	}

	indelResults := map[string]int{}
	observeIndel := func(variant string, used int) {
		if variant == seq {
			return
		}
		if prev, ok := indelResults[variant]; !ok || used < prev {
			indelResults[variant] = used
		}
	}
	walkIndels(seq, seq, indel, 0, observeIndel)

	// Hamming-only pass from the original sequence.
	walkHamming(seq, seq, mismatch, 0, nil, observe)

	// Hamming pass from every indel result, using whatever total budget
	// remains after the indels that produced it.
	for variant, indelsUsed := range indelResults {
		observe(variant, indelsUsed)
		remaining := total - indelsUsed
		if remaining > mismatch {
			remaining = mismatch
		}
		if remaining <= 0 {
			continue
		}
		walkHamming(variant, seq, remaining, indelsUsed, nil, observe)
	}

	delete(results, seq)
	return results
}

// walkHamming recursively substitutes positions of cur not already in
// touched, up to dist substitutions, reporting every variant it produces
// (with its total edit count, baseUsed+substitutions applied so far) via
// observe. original is not consulted here; the observe callback is what
// filters out the unmodified sequence.
func walkHamming(cur, original string, dist, baseUsed int, touched []int, observe func(string, int)) {
	if dist == 0 {
		return
	}
	isTouched := func(i int) bool {
		for _, t := range touched {
			if t == i {
				return true
			}
		}
		return false
	}
	for i := 0; i < len(cur); i++ {
		if isTouched(i) {
			continue
		}
		for _, b := range bases {
			if cur[i] == b {
				continue
			}
			variant := cur[:i] + string(b) + cur[i+1:]
			used := baseUsed + 1
			observe(variant, used)
			walkHamming(variant, original, dist-1, used, append(append([]int{}, touched...), i), observe)
		}
	}
}

// walkIndels recursively inserts or deletes a single base at every
// position of cur, up to dist edits, reporting every non-empty,
// non-original variant it produces via observe.
func walkIndels(cur, original string, dist, baseUsed int, observe func(string, int)) {
	if dist == 0 {
		return
	}
	for i := 0; i <= len(cur); i++ {
		for _, b := range bases {
			variant := cur[:i] + string(b) + cur[i:]
			if variant == original {
				continue
			}
			used := baseUsed + 1
			observe(variant, used)
			walkIndels(variant, original, dist-1, used, observe)
		}
	}
	for i := 0; i < len(cur); i++ {
		variant := cur[:i] + cur[i+1:]
		if variant == "" || variant == original {
			continue
		}
		used := baseUsed + 1
		observe(variant, used)
		walkIndels(variant, original, dist-1, used, observe)
	}
}
