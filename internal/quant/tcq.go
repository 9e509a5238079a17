package quant

import "math"

// TCQState is one of a trellis state's two level offsets, per spec §4.4:
// "each state carries a level offset in {0, 1}".
type TCQState struct {
	cost float64
	back int // predecessor state index in the previous stage, -1 at stage 0
	q    int32
}

// TCQResult is the output of a trellis search: the chosen quantization
// index sequence plus its accumulated distortion and estimated rate.
type TCQResult struct {
	Indices   []int32
	Distortion float64
	RateBits   float64
}

// numStates is fixed at 4, one of the spec's S in {2,4,6,8} values;
// it trades search cost for rate-distortion gain and is a reasonable
// default absent a caller-tunable knob in Options.
const numStates = 4

// TCQEncode runs a pruned Viterbi search over coefficients, choosing at
// each stage the level offset (0 or 1 per state) added to a base scalar
// quantization index, minimizing squared-error-plus-lambda*rate per spec
// §4.4 and DESIGN NOTES §9 (dense [stage][state] trellis with immediate
// back-pointer materialization).
func TCQEncode(coeffs []float64, step, lambda, pruneThreshold float64) TCQResult {
	n := len(coeffs)
	if n == 0 {
		return TCQResult{}
	}
	if pruneThreshold < 1 {
		pruneThreshold = 1
	}

	stages := make([][numStates]TCQState, n)

	baseQuant := func(c float64) int32 {
		if c >= 0 {
			return int32(math.Floor(c / step))
		}
		return -int32(math.Floor(-c / step))
	}

	rateEstimate := func(q int32) float64 {
		if q == 0 {
			return 1 // single "zero" decision bit
		}
		aq := math.Abs(float64(q))
		return 2 + math.Log2(aq) // sign + leading 1 + magnitude bits
	}

	// Stage 0: every state seeded independently, no predecessor.
	for s := 0; s < numStates; s++ {
		q := baseQuant(coeffs[0]) + int32(s%2)
		recon := float64(q) * step
		d := (coeffs[0] - recon) * (coeffs[0] - recon)
		stages[0][s] = TCQState{cost: d + lambda*rateEstimate(q), back: -1, q: q}
	}

	for t := 1; t < n; t++ {
		best := math.Inf(1)
		for s := 0; s < numStates; s++ {
			if stages[t-1][s].cost < best {
				best = stages[t-1][s].cost
			}
		}
		limit := best * pruneThreshold
		for s := 0; s < numStates; s++ {
			q := baseQuant(coeffs[t]) + int32(s%2)
			recon := float64(q) * step
			d := (coeffs[t] - recon) * (coeffs[t] - recon)
			transitionCost := d + lambda*rateEstimate(q)

			bestPrev, bestPrevCost := -1, math.Inf(1)
			for ps := 0; ps < numStates; ps++ {
				pc := stages[t-1][ps].cost
				if pc > limit {
					continue // pruned
				}
				if pc < bestPrevCost {
					bestPrevCost = pc
					bestPrev = ps
				}
			}
			if bestPrev < 0 {
				// Nothing survived pruning (pathological threshold); fall
				// back to the globally cheapest predecessor.
				for ps := 0; ps < numStates; ps++ {
					if stages[t-1][ps].cost < bestPrevCost {
						bestPrevCost = stages[t-1][ps].cost
						bestPrev = ps
					}
				}
			}
			stages[t][s] = TCQState{cost: bestPrevCost + transitionCost, back: bestPrev, q: q}
		}
	}

	// Traceback from the cheapest final state.
	bestState, bestCost := 0, stages[n-1][0].cost
	for s := 1; s < numStates; s++ {
		if stages[n-1][s].cost < bestCost {
			bestCost = stages[n-1][s].cost
			bestState = s
		}
	}

	indices := make([]int32, n)
	dist := 0.0
	rate := 0.0
	state := bestState
	for t := n - 1; t >= 0; t-- {
		st := stages[t][state]
		indices[t] = st.q
		recon := float64(st.q) * step
		diff := coeffs[t] - recon
		dist += diff * diff
		rate += rateEstimate(st.q)
		state = st.back
		if state < 0 {
			break
		}
	}

	return TCQResult{Indices: indices, Distortion: dist, RateBits: rate}
}
