package service

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/merkledrop-labs/merkledrop-go/pkg/authority"
	"github.com/merkledrop-labs/merkledrop-go/pkg/claimstore/memory"
	"github.com/merkledrop-labs/merkledrop-go/pkg/codec"
	"github.com/merkledrop-labs/merkledrop-go/pkg/merkle"
	"github.com/merkledrop-labs/merkledrop-go/pkg/signing"
	"github.com/merkledrop-labs/merkledrop-go/pkg/token"
)

type serviceFixture struct {
	service   *Service
	handler   http.Handler
	store     *memory.MemoryClaimStore
	ledger    *token.MemoryToken
	domain    [32]byte
	keys      []*ecdsa.PrivateKey
	addresses []common.Address
	amount    *big.Int
	root      [32]byte
	proofs    []*merkle.Proof
}

func newServiceFixture(t *testing.T, cfg Config) *serviceFixture {
	t.Helper()

	amount := new(big.Int).Mul(big.NewInt(25), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

	f := &serviceFixture{
		domain: signing.ComputeDomainSeparator("Merkledrop", "1", 31337, common.Address{}),
		amount: amount,
		store:  memory.NewMemoryClaimStore(),
		ledger: token.NewMemoryToken(),
	}

	leaves := make([][32]byte, 4)
	for i := 0; i < 4; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		addr := crypto.PubkeyToAddress(key.PublicKey)

		leaf, err := codec.LeafHash(addr, amount)
		require.NoError(t, err)

		f.keys = append(f.keys, key)
		f.addresses = append(f.addresses, addr)
		leaves[i] = leaf
	}

	tree, err := merkle.BuildTree(leaves)
	require.NoError(t, err)
	f.root = tree.Root

	f.proofs, err = tree.GenerateAllProofs()
	require.NoError(t, err)

	require.NoError(t, f.ledger.FundPool(new(big.Int).Mul(amount, big.NewInt(4))))

	auth, err := authority.NewClaimAuthority(authority.Config{
		Root:            tree.Root,
		DomainSeparator: f.domain,
		Token:           f.ledger,
		Store:           f.store,
	})
	require.NoError(t, err)

	f.service, err = NewService(auth, f.store, nil, cfg)
	require.NoError(t, err)
	f.handler = f.service.GetHandler()

	return f
}

// wireRequest builds a fully valid wire-level claim for recipient i
func (f *serviceFixture) wireRequest(t *testing.T, i int) ClaimRequestV1 {
	t.Helper()

	v, r, s, err := signing.SignClaim(f.keys[i], f.domain, f.addresses[i], f.amount)
	require.NoError(t, err)

	proof := make([]string, len(f.proofs[i].Siblings))
	for j, sibling := range f.proofs[i].Siblings {
		proof[j] = hexutil.Encode(sibling[:])
	}

	return ClaimRequestV1{
		Claimer: f.addresses[i].Hex(),
		Amount:  f.amount.String(),
		Proof:   proof,
		V:       v,
		R:       hexutil.Encode(r[:]),
		S:       hexutil.Encode(s[:]),
	}
}

func (f *serviceFixture) postClaim(t *testing.T, wire ClaimRequestV1) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(wire)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/claim", bytes.NewReader(body))
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestClaimEndpoint(t *testing.T) {
	f := newServiceFixture(t, Config{})

	rec := f.postClaim(t, f.wireRequest(t, 0))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ClaimResponseV1
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	require.Equal(t, f.addresses[0].Hex(), resp.Claimer)
	require.Equal(t, f.amount.String(), resp.Amount)
	require.Equal(t, f.amount, f.ledger.BalanceOf(f.addresses[0]))
}

func TestClaimEndpointTaxonomy(t *testing.T) {
	f := newServiceFixture(t, Config{})

	// Successful claim, then replay
	require.Equal(t, http.StatusOK, f.postClaim(t, f.wireRequest(t, 0)).Code)

	rec := f.postClaim(t, f.wireRequest(t, 0))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "AlreadyClaimed", decodeError(t, rec))

	// Corrupted signature
	wire := f.wireRequest(t, 1)
	wire.V = 99
	rec = f.postClaim(t, wire)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "InvalidSignature", decodeError(t, rec))

	// Foreign proof with a valid signature
	wire = f.wireRequest(t, 1)
	foreign := f.wireRequest(t, 2)
	wire.Proof = foreign.Proof
	rec = f.postClaim(t, wire)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "InvalidProof", decodeError(t, rec))
}

func TestClaimEndpointPayoutFailure(t *testing.T) {
	f := newServiceFixture(t, Config{})

	failing := &token.FailingToken{}
	auth, err := authority.NewClaimAuthority(authority.Config{
		Root:            f.root,
		DomainSeparator: f.domain,
		Token:           failing,
		Store:           memory.NewMemoryClaimStore(),
	})
	require.NoError(t, err)

	svc, err := NewService(auth, f.store, nil, Config{})
	require.NoError(t, err)

	body, err := json.Marshal(f.wireRequest(t, 0))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	svc.GetHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claim", bytes.NewReader(body)))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "PayoutFailed", decodeError(t, rec))
}

func TestClaimEndpointMalformed(t *testing.T) {
	f := newServiceFixture(t, Config{})

	tests := []struct {
		name   string
		mutate func(*ClaimRequestV1)
	}{
		{"bad claimer", func(w *ClaimRequestV1) { w.Claimer = "nobody" }},
		{"bad amount", func(w *ClaimRequestV1) { w.Amount = "25e18" }},
		{"bad proof element", func(w *ClaimRequestV1) { w.Proof = []string{"0x1234"} }},
		{"bad r", func(w *ClaimRequestV1) { w.R = "0x" }},
		{"bad s", func(w *ClaimRequestV1) { w.S = "zz" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := f.wireRequest(t, 0)
			tt.mutate(&wire)
			rec := f.postClaim(t, wire)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "MalformedRequest", decodeError(t, rec))
		})
	}

	t.Run("garbage body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claim", bytes.NewReader([]byte("{"))))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/claim", nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestRootEndpoint(t *testing.T) {
	f := newServiceFixture(t, Config{})

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/root", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RootResponseV1
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, hexutil.Encode(f.root[:]), resp.Root)
}

func TestClaimedEndpoint(t *testing.T) {
	f := newServiceFixture(t, Config{})

	get := func(addr string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/claimed/"+addr, nil))
		return rec
	}

	rec := get(f.addresses[0].Hex())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ClaimedResponseV1
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Claimed)

	require.Equal(t, http.StatusOK, f.postClaim(t, f.wireRequest(t, 0)).Code)

	rec = get(f.addresses[0].Hex())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Claimed)

	require.Equal(t, http.StatusBadRequest, get("not-an-address").Code)
}

func TestHealthEndpoint(t *testing.T) {
	f := newServiceFixture(t, Config{})

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// A closed store reports unhealthy
	require.NoError(t, f.store.Close())
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClaimRateLimit(t *testing.T) {
	f := newServiceFixture(t, Config{ClaimsPerSecond: 0.001, ClaimBurst: 1})

	// First request consumes the whole burst; the second is rejected
	// regardless of validity
	require.Equal(t, http.StatusOK, f.postClaim(t, f.wireRequest(t, 0)).Code)

	rec := f.postClaim(t, f.wireRequest(t, 1))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "RateLimited", decodeError(t, rec))
}

func TestServiceConstruction(t *testing.T) {
	f := newServiceFixture(t, Config{})

	_, err := NewService(nil, f.store, nil, Config{})
	require.Error(t, err)
}
