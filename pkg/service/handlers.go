package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/merkledrop-labs/merkledrop-go/pkg/authority"
	"github.com/merkledrop-labs/merkledrop-go/pkg/types"
)

// ClaimRequestV1 is the wire form of a claim submission. All digests and
// signature components are 0x-prefixed hex; the amount is a decimal
// string.
type ClaimRequestV1 struct {
	Claimer string   `json:"claimer"`
	Amount  string   `json:"amount"`
	Proof   []string `json:"proof"`
	V       uint8    `json:"v"`
	R       string   `json:"r"`
	S       string   `json:"s"`
}

// ClaimResponseV1 acknowledges a successful claim.
type ClaimResponseV1 struct {
	ID      string `json:"id"`
	Claimer string `json:"claimer"`
	Amount  string `json:"amount"`
}

type RootResponseV1 struct {
	Root string `json:"root"`
}

type ClaimedResponseV1 struct {
	Address string `json:"address"`
	Claimed bool   `json:"claimed"`
}

type HealthResponseV1 struct {
	Status string `json:"status"`
}

// errorResponse carries the taxonomy name of a failed claim so callers
// can distinguish outcomes without string matching on detail text.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, name, detail string) {
	writeJSON(w, status, errorResponse{Error: name, Detail: detail})
}

// handleClaim handles the /claim endpoint for claim submission
func (s *Service) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "")
		return
	}

	if s.limiter != nil && !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "RateLimited", "claim rate limit exceeded")
		return
	}

	var wire ClaimRequestV1
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, "MalformedRequest", fmt.Sprintf("failed to parse request: %v", err))
		return
	}

	req, err := wire.toClaimRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, "MalformedRequest", err.Error())
		return
	}

	notification, err := s.authority.Claim(req)
	if err != nil {
		status, name := claimErrorStatus(err)
		s.logger.Sugar().Infow("Claim rejected over HTTP",
			"claimer", wire.Claimer, "error", name)
		writeError(w, status, name, "")
		return
	}

	writeJSON(w, http.StatusOK, ClaimResponseV1{
		ID:      notification.ID,
		Claimer: notification.Claimer.Hex(),
		Amount:  notification.Amount.String(),
	})
}

// claimErrorStatus maps taxonomy errors to HTTP outcomes. Unknown
// errors are treated as internal.
func claimErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, authority.ErrAlreadyClaimed):
		return http.StatusConflict, "AlreadyClaimed"
	case errors.Is(err, authority.ErrInvalidSignature):
		return http.StatusUnauthorized, "InvalidSignature"
	case errors.Is(err, authority.ErrInvalidProof):
		return http.StatusForbidden, "InvalidProof"
	case errors.Is(err, authority.ErrPayoutFailed):
		// claim eligibility is untouched; the caller may retry
		return http.StatusServiceUnavailable, "PayoutFailed"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

func (wire *ClaimRequestV1) toClaimRequest() (*types.ClaimRequest, error) {
	if !common.IsHexAddress(wire.Claimer) {
		return nil, fmt.Errorf("malformed claimer address %q", wire.Claimer)
	}

	amount, ok := new(big.Int).SetString(wire.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", wire.Amount)
	}

	proof := make([][32]byte, len(wire.Proof))
	for i, hex := range wire.Proof {
		digest, err := decodeDigest(hex)
		if err != nil {
			return nil, fmt.Errorf("proof element %d: %w", i, err)
		}
		proof[i] = digest
	}

	rSig, err := decodeDigest(wire.R)
	if err != nil {
		return nil, fmt.Errorf("signature r: %w", err)
	}
	sSig, err := decodeDigest(wire.S)
	if err != nil {
		return nil, fmt.Errorf("signature s: %w", err)
	}

	return &types.ClaimRequest{
		Claimer:     common.HexToAddress(wire.Claimer),
		Amount:      amount,
		MerkleProof: proof,
		V:           wire.V,
		R:           rSig,
		S:           sSig,
	}, nil
}

func decodeDigest(hex string) ([32]byte, error) {
	var digest [32]byte
	raw, err := hexutil.Decode(hex)
	if err != nil {
		return digest, fmt.Errorf("malformed digest %q: %v", hex, err)
	}
	if len(raw) != 32 {
		return digest, fmt.Errorf("digest must be 32 bytes, got %d", len(raw))
	}
	copy(digest[:], raw)
	return digest, nil
}

// handleRoot handles the /root endpoint
func (s *Service) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "")
		return
	}

	root := s.authority.Root()
	writeJSON(w, http.StatusOK, RootResponseV1{Root: hexutil.Encode(root[:])})
}

// handleClaimed handles /claimed/{address} status reads
func (s *Service) handleClaimed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "")
		return
	}

	addrStr := strings.TrimPrefix(r.URL.Path, "/claimed/")
	if !common.IsHexAddress(addrStr) {
		writeError(w, http.StatusBadRequest, "MalformedRequest", fmt.Sprintf("malformed address %q", addrStr))
		return
	}
	addr := common.HexToAddress(addrStr)

	claimed, err := s.authority.IsClaimed(addr)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to read claimed flag", "address", addr.Hex(), "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "")
		return
	}

	writeJSON(w, http.StatusOK, ClaimedResponseV1{Address: addr.Hex(), Claimed: claimed})
}

// handleHealth handles the /health probe
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "")
		return
	}

	if err := s.store.HealthCheck(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponseV1{Status: "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponseV1{Status: "ok"})
}
