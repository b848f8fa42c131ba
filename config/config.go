// Package config loads the tokens, pairs and venues the engine trades on.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/flashbots/dex-arb-bot/arbitrage"
	"github.com/flashbots/dex-arb-bot/venue"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidToken   = errors.New("invalid token entry")
	ErrUnknownToken   = errors.New("unknown token")
	ErrInvalidPair    = errors.New("invalid pair entry")
	ErrInvalidVenue   = errors.New("invalid venue entry")
	ErrInvalidPoolID  = errors.New("invalid pool id")
	ErrEmpty          = errors.New("config has no pairs or no enabled venues")
)

type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals int32  `yaml:"decimals"`
}

type PairConfig struct {
	Base  string `yaml:"base"`
	Quote string `yaml:"quote"`
}

type PoolConfig struct {
	Token0 string `yaml:"token0"`
	Token1 string `yaml:"token1"`
	PoolID string `yaml:"pool_id"`
}

type VenueConfig struct {
	Name     string       `yaml:"name"`
	Kind     string       `yaml:"kind"`
	Address  string       `yaml:"address"`
	Disabled bool         `yaml:"disabled"`
	Pools    []PoolConfig `yaml:"pools"`
}

type File struct {
	Tokens []TokenConfig `yaml:"tokens"`
	Pairs  []PairConfig  `yaml:"pairs"`
	Venues []VenueConfig `yaml:"venues"`
}

// Markets is a validated config file
type Markets struct {
	Tokens map[string]arbitrage.Token
	Pairs  []arbitrage.Pair
	Venues []venue.Spec
}

// Load parses and validates a markets config from a file
func Load(file string) (*Markets, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Markets, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Markets()
}

func (f *File) Markets() (*Markets, error) {
	m := &Markets{Tokens: make(map[string]arbitrage.Token, len(f.Tokens))}

	for _, t := range f.Tokens {
		symbol := strings.ToUpper(t.Symbol)
		if symbol == "" || t.Decimals < 0 || t.Decimals > 36 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidToken, t.Symbol)
		}
		if _, ok := m.Tokens[symbol]; ok {
			return nil, fmt.Errorf("%w: duplicate symbol %s", ErrInvalidToken, symbol)
		}
		addr, err := parseAddress(t.Address)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", symbol, err)
		}
		m.Tokens[symbol] = arbitrage.Token{Symbol: symbol, Address: addr, Decimals: t.Decimals}
	}

	seenPairs := make(map[string]bool, len(f.Pairs))
	for _, p := range f.Pairs {
		base, err := m.token(p.Base)
		if err != nil {
			return nil, err
		}
		quote, err := m.token(p.Quote)
		if err != nil {
			return nil, err
		}
		if base.Address == quote.Address {
			return nil, fmt.Errorf("%w: %s/%s", ErrInvalidPair, p.Base, p.Quote)
		}
		pair := arbitrage.Pair{Base: base, Quote: quote}
		if seenPairs[pair.Key()] {
			return nil, fmt.Errorf("%w: duplicate pair %s", ErrInvalidPair, pair.String())
		}
		seenPairs[pair.Key()] = true
		m.Pairs = append(m.Pairs, pair)
	}

	seenVenues := make(map[string]bool, len(f.Venues))
	for _, v := range f.Venues {
		if v.Name == "" {
			return nil, fmt.Errorf("%w: missing name", ErrInvalidVenue)
		}
		if seenVenues[v.Name] {
			return nil, fmt.Errorf("%w: duplicate name %s", ErrInvalidVenue, v.Name)
		}
		seenVenues[v.Name] = true
		if v.Disabled {
			continue
		}
		spec, err := m.venueSpec(v)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", v.Name, err)
		}
		m.Venues = append(m.Venues, spec)
	}

	if len(m.Pairs) == 0 || len(m.Venues) == 0 {
		return nil, ErrEmpty
	}
	return m, nil
}

func (m *Markets) venueSpec(v VenueConfig) (venue.Spec, error) {
	kind := venue.Kind(v.Kind)
	switch kind {
	case venue.KindRouter, venue.KindWeighted, venue.KindStableSwap:
	default:
		return venue.Spec{}, fmt.Errorf("%w: %q", venue.ErrUnknownKind, v.Kind)
	}
	addr, err := parseAddress(v.Address)
	if err != nil {
		return venue.Spec{}, err
	}

	spec := venue.Spec{Name: v.Name, Kind: kind, Address: addr}
	if len(v.Pools) == 0 {
		return spec, nil
	}
	if kind != venue.KindWeighted {
		return venue.Spec{}, fmt.Errorf("%w: pools are only used by weighted venues", ErrInvalidVenue)
	}
	spec.Pools = make(map[string][32]byte, len(v.Pools))
	for _, p := range v.Pools {
		t0, err := m.token(p.Token0)
		if err != nil {
			return venue.Spec{}, err
		}
		t1, err := m.token(p.Token1)
		if err != nil {
			return venue.Spec{}, err
		}
		id, err := hexutil.Decode(p.PoolID)
		if err != nil || len(id) != 32 {
			return venue.Spec{}, fmt.Errorf("%w: %q", ErrInvalidPoolID, p.PoolID)
		}
		var poolID [32]byte
		copy(poolID[:], id)
		spec.Pools[venue.PairKey(t0.Address, t1.Address)] = poolID
	}
	return spec, nil
}

func (m *Markets) token(symbol string) (arbitrage.Token, error) {
	t, ok := m.Tokens[strings.ToUpper(symbol)]
	if !ok {
		return arbitrage.Token{}, fmt.Errorf("%w: %q", ErrUnknownToken, symbol)
	}
	return t, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", ErrInvalidAddress)
	}
	return addr, nil
}
