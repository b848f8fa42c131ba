package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var signingKey, _ = crypto.HexToECDSA("f14240ad715b780803f613f636b05bacc2db6622c21eb48bf4302ec3e44c0acb")

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func newRelay(t *testing.T, response string, seen *SendBundleArgs) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		header := r.Header.Get(SignatureHeader)
		parts := strings.Split(header, ":")
		require.Len(t, parts, 2)

		sig, err := hexutil.Decode(parts[1])
		require.NoError(t, err)
		hashedBody := hexutil.Encode(crypto.Keccak256(body))
		pub, err := crypto.SigToPub(accounts.TextHash([]byte(hashedBody)), sig)
		require.NoError(t, err)
		require.Equal(t, common.HexToAddress(parts[0]), crypto.PubkeyToAddress(*pub))
		require.Equal(t, crypto.PubkeyToAddress(signingKey.PublicKey), crypto.PubkeyToAddress(*pub))

		var req rpcRequest
		require.NoError(t, json.Unmarshal(body, &req))
		require.Equal(t, "eth_sendBundle", req.Method)
		require.Len(t, req.Params, 1)
		require.NoError(t, json.Unmarshal(req.Params[0], seen))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
}

func TestSendBundle(t *testing.T) {
	var seen SendBundleArgs
	hash := common.HexToHash("0x1234")
	srv := newRelay(t, `{"jsonrpc":"2.0","id":0,"result":{"bundleHash":"`+hash.Hex()+`"}}`, &seen)
	defer srv.Close()

	client := NewClient(srv.URL, signingKey)
	require.Equal(t, srv.URL, client.String())

	args := &SendBundleArgs{
		Txs:          []hexutil.Bytes{{0x02, 0x01}},
		BlockNumber:  hexutil.Uint64(101),
		MinTimestamp: 1000,
		MaxTimestamp: 1120,
	}
	resp, err := client.SendBundle(context.Background(), args)
	require.NoError(t, err)
	require.Equal(t, hash, resp.BundleHash)
	require.Equal(t, *args, seen)
}

func TestSendBundleRejected(t *testing.T) {
	testCases := []struct {
		name     string
		response string
		err      error
	}{
		{
			name:     "rpc error",
			response: `{"jsonrpc":"2.0","id":0,"error":{"code":-32000,"message":"bundle too old"}}`,
			err:      ErrRelayRejected,
		},
		{
			name:     "null result",
			response: `{"jsonrpc":"2.0","id":0,"result":null}`,
			err:      ErrEmptyResult,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var seen SendBundleArgs
			srv := newRelay(t, tc.response, &seen)
			defer srv.Close()

			_, err := NewClient(srv.URL, signingKey).SendBundle(context.Background(), &SendBundleArgs{BlockNumber: 1})
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestSignatureFormat(t *testing.T) {
	sig, err := Signature([]byte(`{"method":"eth_sendBundle"}`), signingKey)
	require.NoError(t, err)

	parts := strings.Split(sig, ":")
	require.Len(t, parts, 2)
	require.Equal(t, crypto.PubkeyToAddress(signingKey.PublicKey).Hex(), parts[0])
	require.Len(t, parts[1], 2+65*2)
}

func TestSendBundleTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, signingKey).SendBundle(context.Background(), &SendBundleArgs{BlockNumber: 1})
	require.ErrorIs(t, err, ErrRelayTransport)
}
