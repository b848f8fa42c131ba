// Package relay submits signed transaction bundles to a flashbots-compatible relay.
package relay

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/flashbots/dex-arb-bot/metrics"
	"github.com/ybbus/jsonrpc/v3"
)

const (
	SignatureHeader = "X-Flashbots-Signature"

	defaultTimeout = 10 * time.Second
)

var (
	ErrRelayRejected  = errors.New("relay rejected bundle")
	ErrRelayTransport = errors.New("relay request failed")
	ErrEmptyResult    = errors.New("relay returned empty result")
)

// SendBundleArgs are the parameters of eth_sendBundle
type SendBundleArgs struct {
	Txs          []hexutil.Bytes `json:"txs"`
	BlockNumber  hexutil.Uint64  `json:"blockNumber"`
	MinTimestamp uint64          `json:"minTimestamp,omitempty"`
	MaxTimestamp uint64          `json:"maxTimestamp,omitempty"`
}

type SendBundleResponse struct {
	BundleHash common.Hash `json:"bundleHash"`
}

type Client struct {
	url    string
	client jsonrpc.RPCClient
}

// NewClient creates a relay client. Every request body is signed with signingKey and the signature
// is sent in the X-Flashbots-Signature header.
func NewClient(url string, signingKey *ecdsa.PrivateKey) *Client {
	httpClient := &http.Client{
		Timeout: defaultTimeout,
		Transport: &signingTransport{
			key:  signingKey,
			base: http.DefaultTransport,
		},
	}
	return &Client{
		url: url,
		client: jsonrpc.NewClientWithOpts(url, &jsonrpc.RPCClientOpts{
			HTTPClient: httpClient,
		}),
	}
}

func (c *Client) String() string {
	return c.url
}

// SendBundle submits the bundle. The relay answers with the bundle hash when it accepts it.
func (c *Client) SendBundle(ctx context.Context, args *SendBundleArgs) (*SendBundleResponse, error) {
	startAt := time.Now()
	defer func() {
		metrics.RecordRelayCallDuration(time.Since(startAt).Milliseconds())
	}()

	res, err := c.client.Call(ctx, "eth_sendBundle", []*SendBundleArgs{args})
	if err != nil {
		return nil, errors.Join(ErrRelayTransport, err)
	}
	if res.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrRelayRejected, res.Error.Error())
	}
	if res.Result == nil {
		return nil, ErrEmptyResult
	}

	var resp SendBundleResponse
	// some relays answer with a bare result, the hash is then left empty
	_ = res.GetObject(&resp)
	return &resp, nil
}

// Signature computes the X-Flashbots-Signature header value for body.
func Signature(body []byte, key *ecdsa.PrivateKey) (string, error) {
	hashedBody := hexutil.Encode(crypto.Keccak256(body))
	sig, err := crypto.Sign(accounts.TextHash([]byte(hashedBody)), key)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex() + ":" + hexutil.Encode(sig), nil
}

type signingTransport struct {
	key  *ecdsa.PrivateKey
	base http.RoundTripper
}

func (t *signingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	signature, err := Signature(body, t.key)
	if err != nil {
		return nil, err
	}

	signed := req.Clone(req.Context())
	signed.Body = io.NopCloser(bytes.NewReader(body))
	signed.ContentLength = int64(len(body))
	signed.Header.Set(SignatureHeader, signature)
	return t.base.RoundTrip(signed)
}
