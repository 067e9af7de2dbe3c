package route

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
)

// Validate checks that a route is a continuous chain starting at start:
// hop[i].TokenOut == hop[i+1].TokenIn, no hop swaps a token into itself, and
// every address is set. Venue pair addresses may be zero; they are resolved
// through the factory later.
func Validate(r engine.Route, start common.Address) error {
	if len(r.Hops) == 0 {
		return fmt.Errorf("%w: %s route has no hops", engine.ErrConfigurationInvalid, r.Direction)
	}
	if r.Hops[0].TokenIn.Address != start {
		return fmt.Errorf("%w: %s route starts at %s, expected default token %s",
			engine.ErrConfigurationInvalid, r.Direction, r.Hops[0].TokenIn.Address.Hex(), start.Hex())
	}

	for i, hop := range r.Hops {
		if hop.Dex.Name == "" {
			return fmt.Errorf("%w: %s hop %d has no venue name", engine.ErrConfigurationInvalid, r.Direction, i)
		}
		addrs := mapset.NewThreadUnsafeSet(hop.Dex.Router, hop.Dex.Factory, hop.TokenIn.Address, hop.TokenOut.Address)
		if addrs.Contains(common.Address{}) {
			return fmt.Errorf("%w: %s hop %d (%s) has a zero address", engine.ErrConfigurationInvalid, r.Direction, i, hop.Dex.Name)
		}

		legs := mapset.NewThreadUnsafeSet(hop.TokenIn.Address, hop.TokenOut.Address)
		if legs.Cardinality() != 2 {
			return fmt.Errorf("%w: %s hop %d swaps %s into itself", engine.ErrConfigurationInvalid, r.Direction, i, hop.TokenIn.Symbol)
		}

		if i+1 < len(r.Hops) && hop.TokenOut.Address != r.Hops[i+1].TokenIn.Address {
			return fmt.Errorf("%w: %s hop %d ends in %s but hop %d starts with %s",
				engine.ErrConfigurationInvalid, r.Direction, i, hop.TokenOut.Symbol, i+1, r.Hops[i+1].TokenIn.Symbol)
		}
	}

	return nil
}
