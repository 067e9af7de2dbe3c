package registry

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
)

// Venue is the immutable handle of a bound venue.
type Venue struct {
	Dex    engine.Dex
	Router chains.RouterQuoter
}

// PairInfo describes a monitored pair. Token0 sorts below Token1.
type PairInfo struct {
	Address common.Address
	Venue   string
	Token0  common.Address
	Token1  common.Address
}

// Registry holds venue handles resolved once at initialization. It is read-only
// after Build returns and safe for concurrent use.
type Registry struct {
	venues map[string]Venue
	pairs  map[common.Address]PairInfo
	tokens map[common.Address]engine.Token
	routes map[engine.Direction]engine.Route
}

// Build binds every venue referenced by the routes exactly once, keyed by venue
// name, and resolves missing pair addresses through the venue factory.
func Build(ctx context.Context, binder chains.VenueBinder, routes ...engine.Route) (*Registry, error) {
	r := &Registry{
		venues: make(map[string]Venue),
		pairs:  make(map[common.Address]PairInfo),
		tokens: make(map[common.Address]engine.Token),
		routes: make(map[engine.Direction]engine.Route, len(routes)),
	}

	for _, route := range routes {
		resolved := engine.Route{Direction: route.Direction, Hops: make([]engine.Hop, len(route.Hops))}
		for i, hop := range route.Hops {
			if err := r.bindVenue(ctx, binder, hop.Dex); err != nil {
				return nil, err
			}

			if hop.Dex.Pair == (common.Address{}) {
				pair, err := binder.PairFor(ctx, hop.Dex.Factory, hop.TokenIn.Address, hop.TokenOut.Address)
				if err != nil {
					return nil, fmt.Errorf("failed to resolve %s pair %s/%s: %w", hop.Dex.Name, hop.TokenIn.Symbol, hop.TokenOut.Symbol, err)
				}
				if pair == (common.Address{}) {
					return nil, fmt.Errorf("%w: %s has no pair for %s/%s", engine.ErrConfigurationInvalid, hop.Dex.Name, hop.TokenIn.Symbol, hop.TokenOut.Symbol)
				}
				hop.Dex.Pair = pair
			}

			r.tokens[hop.TokenIn.Address] = hop.TokenIn
			r.tokens[hop.TokenOut.Address] = hop.TokenOut
			if _, ok := r.pairs[hop.Dex.Pair]; !ok {
				// uniswap v2 pairs order tokens by address
				token0, token1 := hop.TokenIn.Address, hop.TokenOut.Address
				if token1.Cmp(token0) < 0 {
					token0, token1 = token1, token0
				}
				r.pairs[hop.Dex.Pair] = PairInfo{
					Address: hop.Dex.Pair,
					Venue:   hop.Dex.Name,
					Token0:  token0,
					Token1:  token1,
				}
			}
			resolved.Hops[i] = hop
		}
		r.routes[route.Direction] = resolved
	}

	return r, nil
}

func (r *Registry) bindVenue(ctx context.Context, binder chains.VenueBinder, dex engine.Dex) error {
	if existing, ok := r.venues[dex.Name]; ok {
		if existing.Dex.Router != dex.Router || existing.Dex.Factory != dex.Factory {
			return fmt.Errorf("%w: venue %q configured with conflicting router/factory", engine.ErrConfigurationInvalid, dex.Name)
		}
		return nil
	}

	router, err := binder.BindRouter(ctx, dex)
	if err != nil {
		return fmt.Errorf("failed to bind router of venue %q: %w", dex.Name, err)
	}
	r.venues[dex.Name] = Venue{Dex: dex, Router: router}
	return nil
}

// Router implements quote.RouterLookup.
func (r *Registry) Router(name string) (chains.RouterQuoter, bool) {
	v, ok := r.venues[name]
	if !ok {
		return nil, false
	}
	return v.Router, true
}

// Pair returns the monitored pair registered at addr.
func (r *Registry) Pair(addr common.Address) (PairInfo, bool) {
	p, ok := r.pairs[addr]
	return p, ok
}

// Pairs returns every monitored pair address.
func (r *Registry) Pairs() []common.Address {
	out := make([]common.Address, 0, len(r.pairs))
	for addr := range r.pairs {
		out = append(out, addr)
	}
	return out
}

// Token looks a token up by address. Unknown addresses yield an UNKNOWN token
// with 18 decimals.
func (r *Registry) Token(addr common.Address) engine.Token {
	if t, ok := r.tokens[addr]; ok {
		return t
	}
	return engine.Token{Symbol: "UNKNOWN", Address: addr, Decimals: 18}
}

// Route returns the resolved route for a direction.
func (r *Registry) Route(d engine.Direction) (engine.Route, bool) {
	route, ok := r.routes[d]
	return route, ok
}

// VenueNameForPair returns the venue that owns a pair, or UNKNOWN.
func (r *Registry) VenueNameForPair(addr common.Address) string {
	if p, ok := r.pairs[addr]; ok {
		return p.Venue
	}
	return "UNKNOWN"
}
