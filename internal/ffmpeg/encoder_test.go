package ffmpeg

import "testing"

func TestAtempoChainSingleStageWithinRange(t *testing.T) {
	stages := atempoChain(1.5)
	if len(stages) != 1 || stages[0] != "atempo=1.500000" {
		t.Fatalf("atempoChain(1.5) = %v", stages)
	}
}

func TestAtempoChainSplitsLargeFactors(t *testing.T) {
	stages := atempoChain(8.0)
	if len(stages) < 2 {
		t.Fatalf("atempoChain(8.0) = %v, want multiple stages (atempo caps at 2.0)", stages)
	}
	for _, s := range stages[:len(stages)-1] {
		if s != "atempo=2.0" {
			t.Errorf("intermediate stage %q, want atempo=2.0", s)
		}
	}
}

func TestAtempoChainSplitsSmallFactors(t *testing.T) {
	stages := atempoChain(0.2)
	if len(stages) < 2 {
		t.Fatalf("atempoChain(0.2) = %v, want multiple stages (atempo floors at 0.5)", stages)
	}
}
