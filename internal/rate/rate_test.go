package rate

import "testing"

func TestFormLayers_QualityShare_MonotonicAndFinal(t *testing.T) {
	blocks := []CodeBlockPoints{
		{
			ID: 0,
			Points: []PassPoint{
				{CumulativeBytes: 10, DeltaDistortion: 100},
				{CumulativeBytes: 25, DeltaDistortion: 50},
				{CumulativeBytes: 40, DeltaDistortion: 10},
			},
		},
		{
			ID: 1,
			Points: []PassPoint{
				{CumulativeBytes: 5, DeltaDistortion: 30},
				{CumulativeBytes: 15, DeltaDistortion: 30},
			},
		},
	}
	out := FormLayers(blocks, 3, nil)
	if len(out) != len(blocks) {
		t.Fatalf("got %d assignments, want %d", len(out), len(blocks))
	}
	for i, la := range out {
		if la.ID != blocks[i].ID {
			t.Errorf("assignment %d: ID = %d, want %d", i, la.ID, blocks[i].ID)
		}
		if len(la.IncludedBytes) != 3 {
			t.Fatalf("assignment %d: %d layers, want 3", i, len(la.IncludedBytes))
		}
		for l := 1; l < len(la.IncludedBytes); l++ {
			if la.IncludedBytes[l] < la.IncludedBytes[l-1] {
				t.Errorf("assignment %d: IncludedBytes not monotonic: %v", i, la.IncludedBytes)
			}
		}
		last := blocks[i].Points[len(blocks[i].Points)-1].CumulativeBytes
		if la.IncludedBytes[len(la.IncludedBytes)-1] != last {
			t.Errorf("assignment %d: final layer = %d, want %d (all passes included)", i, la.IncludedBytes[len(la.IncludedBytes)-1], last)
		}
	}
}

func TestFormLayers_ZeroDistortionBlockIncludesAllBytesImmediately(t *testing.T) {
	blocks := []CodeBlockPoints{
		{
			ID: 0,
			Points: []PassPoint{
				{CumulativeBytes: 8, DeltaDistortion: 0},
				{CumulativeBytes: 16, DeltaDistortion: 0},
			},
		},
	}
	out := FormLayers(blocks, 2, nil)
	for l, b := range out[0].IncludedBytes {
		if b != 16 {
			t.Errorf("layer %d: IncludedBytes = %d, want 16 (full block, no distortion signal)", l, b)
		}
	}
}

func TestFormLayers_SingleLayerIncludesEverything(t *testing.T) {
	blocks := []CodeBlockPoints{
		{ID: 0, Points: []PassPoint{{CumulativeBytes: 50, DeltaDistortion: 5}}},
	}
	out := FormLayers(blocks, 1, nil)
	if out[0].IncludedBytes[0] != 50 {
		t.Errorf("IncludedBytes[0] = %d, want 50", out[0].IncludedBytes[0])
	}
}

func TestFormLayers_NumLayersBelowOneClampedToOne(t *testing.T) {
	blocks := []CodeBlockPoints{
		{ID: 0, Points: []PassPoint{{CumulativeBytes: 12, DeltaDistortion: 1}}},
	}
	out := FormLayers(blocks, 0, nil)
	if len(out[0].IncludedBytes) != 1 {
		t.Fatalf("got %d layers, want 1 (clamped)", len(out[0].IncludedBytes))
	}
}

func TestFormLayers_ByteBudgetRespectsFinalLayerBudget(t *testing.T) {
	blocks := []CodeBlockPoints{
		{
			ID: 0,
			Points: []PassPoint{
				{CumulativeBytes: 10, DeltaDistortion: 200},
				{CumulativeBytes: 50, DeltaDistortion: 150},
				{CumulativeBytes: 100, DeltaDistortion: 5},
			},
		},
	}
	// A generous final-layer budget should admit at least the
	// highest-slope passes without exceeding total available bytes.
	out := FormLayers(blocks, 2, []int{20, 1000})
	if out[0].IncludedBytes[1] > 100 {
		t.Errorf("IncludedBytes[1] = %d, exceeds the code-block's total coded bytes (100)", out[0].IncludedBytes[1])
	}
	if out[0].IncludedBytes[0] > out[0].IncludedBytes[1] {
		t.Errorf("layer 0 (%d) > layer 1 (%d): not monotonic", out[0].IncludedBytes[0], out[0].IncludedBytes[1])
	}
}

func TestPassPoint_SlopeZeroWhenNoBytesAdded(t *testing.T) {
	p := PassPoint{CumulativeBytes: 10, DeltaDistortion: 5}
	if got := p.slope(10); got != 0 {
		t.Errorf("slope with zero added bytes = %v, want 0", got)
	}
	if got := p.slope(15); got != 0 {
		t.Errorf("slope with negative added bytes = %v, want 0", got)
	}
}

func TestPassPoint_SlopePositive(t *testing.T) {
	p := PassPoint{CumulativeBytes: 20, DeltaDistortion: 40}
	if got := p.slope(10); got != 4 {
		t.Errorf("slope(10) = %v, want 4", got)
	}
}
