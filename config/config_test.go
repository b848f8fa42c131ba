package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/dex-arb-bot/venue"
	"github.com/stretchr/testify/require"
)

const testMarkets = `
tokens:
  - symbol: WETH
    address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
    decimals: 18
  - symbol: usdc
    address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
    decimals: 6
pairs:
  - base: WETH
    quote: USDC
venues:
  - name: uniswap
    kind: router
    address: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"
  - name: balancer
    kind: weighted
    address: "0xE39B5e3B6D74016b2F6A9673D7d7493B6DF549d5"
    pools:
      - token0: WETH
        token1: USDC
        pool_id: "0x96646936b91d6b9d7d0c47c496afbf3d6ec7b6f8000200000000000000000019"
  - name: curve
    kind: stableswap
    address: "0x90E00ACe148ca3b23Ac1bC8C240C2a7Dd9c2d7f5"
  - name: sushiswap
    kind: router
    address: "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F"
    disabled: true
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(testMarkets))
	require.NoError(t, err)

	require.Len(t, m.Tokens, 2)
	usdc := m.Tokens["USDC"]
	require.Equal(t, int32(6), usdc.Decimals)

	require.Len(t, m.Pairs, 1)
	require.Equal(t, "WETH/USDC", m.Pairs[0].String())

	require.Len(t, m.Venues, 3)
	require.Equal(t, "uniswap", m.Venues[0].Name)
	require.Equal(t, venue.KindRouter, m.Venues[0].Kind)
	require.Equal(t, common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"), m.Venues[0].Address)

	balancer := m.Venues[1]
	require.Equal(t, venue.KindWeighted, balancer.Kind)
	poolID, ok := balancer.Pools[m.Pairs[0].Key()]
	require.True(t, ok)
	require.Equal(t, byte(0x96), poolID[0])
	require.Equal(t, byte(0x19), poolID[31])

	require.Equal(t, venue.KindStableSwap, m.Venues[2].Kind)
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name string
		old  string
		new  string
		err  error
	}{
		{name: "unknown token", old: "quote: USDC", new: "quote: DAI", err: ErrUnknownToken},
		{name: "bad address", old: `"0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"`, new: `"0x7a25"`, err: ErrInvalidAddress},
		{name: "unknown kind", old: "kind: stableswap", new: "kind: orderbook", err: venue.ErrUnknownKind},
		{name: "duplicate venue", old: "name: curve", new: "name: uniswap", err: ErrInvalidVenue},
		{name: "same token pair", old: "quote: USDC", new: "quote: weth", err: ErrInvalidPair},
		{name: "short pool id", old: `"0x96646936b91d6b9d7d0c47c496afbf3d6ec7b6f8000200000000000000000019"`, new: `"0x9664"`, err: ErrInvalidPoolID},
		{name: "negative decimals", old: "decimals: 6", new: "decimals: -1", err: ErrInvalidToken},
		{name: "no pairs", old: "  - base: WETH\n    quote: USDC\n", new: "", err: ErrEmpty},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := strings.Replace(testMarkets, tc.old, tc.new, 1)
			require.NotEqual(t, testMarkets, data)
			_, err := Parse([]byte(data))
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testMarkets), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	require.Len(t, m.Pairs, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
