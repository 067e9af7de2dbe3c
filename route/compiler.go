package route

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
)

// MergeMode selects how consecutive same-venue hops are folded into one quote.
type MergeMode string

const (
	// MergePairwise folds at most two adjacent hops per segment.
	MergePairwise MergeMode = "pairwise"
	// MergeChain folds every maximal run of same-venue hops into one segment.
	MergeChain MergeMode = "chain"
)

// ParseMergeMode maps a configuration value to a MergeMode. Empty means pairwise.
func ParseMergeMode(s string) (MergeMode, error) {
	switch MergeMode(s) {
	case "", MergePairwise:
		return MergePairwise, nil
	case MergeChain:
		return MergeChain, nil
	default:
		return "", fmt.Errorf("%w: unknown merge mode %q", engine.ErrConfigurationInvalid, s)
	}
}

// Compile turns a route into ordered quote segments. Every hop index appears in
// exactly one segment and segments keep route order.
func Compile(r engine.Route, mode MergeMode) ([]engine.Segment, error) {
	if len(r.Hops) == 0 {
		return nil, fmt.Errorf("%w: %s route has no hops", engine.ErrConfigurationInvalid, r.Direction)
	}

	maxRun := 2
	if mode == MergeChain {
		maxRun = len(r.Hops)
	}

	segments := make([]engine.Segment, 0, len(r.Hops))
	for i := 0; i < len(r.Hops); {
		first := r.Hops[i]
		seg := engine.Segment{
			Dex:  first.Dex,
			Path: []common.Address{first.TokenIn.Address, first.TokenOut.Address},
			Hops: []int{i},
		}

		j := i + 1
		for j < len(r.Hops) && len(seg.Hops) < maxRun && r.Hops[j].Dex.Name == first.Dex.Name {
			seg.Path = append(seg.Path, r.Hops[j].TokenOut.Address)
			seg.Hops = append(seg.Hops, j)
			j++
		}

		segments = append(segments, seg)
		i = j
	}

	return segments, nil
}
