// Package builder turns a distributor's entitlement list into the
// published commitment artifacts: the root digest and one proof bundle
// per record. The build is all-or-nothing; any defect in the input list
// aborts the whole run before anything is written.
package builder

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/codec"
	"github.com/merkledrop-labs/merkledrop-go/pkg/merkle"
	"github.com/merkledrop-labs/merkledrop-go/pkg/types"
)

// ErrInvalidInput reports a defective entitlement list. Every input
// defect (count mismatch, missing index, bad address, bad amount,
// duplicate recipient) wraps this sentinel so callers can distinguish
// input problems from build failures.
var ErrInvalidInput = errors.New("invalid entitlement list")

// entitlementListFile mirrors the distributor's list format: positional
// type tags, a record count, and values keyed by decimal leaf index.
type entitlementListFile struct {
	Types  []string                     `json:"types"`
	Count  int                          `json:"count"`
	Values map[string]map[string]string `json:"values"`
}

// ProofBundle is the per-record artifact handed to a recipient. All
// digests are 0x-prefixed hex.
type ProofBundle struct {
	Inputs []string `json:"inputs"`
	Proof  []string `json:"proof"`
	Root   string   `json:"root"`
	Leaf   string   `json:"leaf"`
}

// Artifact is a completed build: the root commitment and one bundle per
// leaf, in leaf order.
type Artifact struct {
	Root    [32]byte
	Records []types.EntitlementRecord
	Bundles []ProofBundle
}

// ParseEntitlementList decodes and fully validates a distributor list.
// It returns the records in leaf order or an error wrapping
// ErrInvalidInput; it never returns a partial record slice.
func ParseEntitlementList(data []byte) ([]types.EntitlementRecord, error) {
	var file entitlementListFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if len(file.Types) != 2 {
		return nil, fmt.Errorf("%w: expected 2 type tags, got %d", ErrInvalidInput, len(file.Types))
	}
	if file.Types[0] != "address" {
		return nil, fmt.Errorf("%w: field 0 must be address, got %q", ErrInvalidInput, file.Types[0])
	}
	if file.Types[1] != "uint" && file.Types[1] != "uint256" {
		return nil, fmt.Errorf("%w: field 1 must be uint, got %q", ErrInvalidInput, file.Types[1])
	}
	if file.Count < 1 {
		return nil, fmt.Errorf("%w: count must be at least 1, got %d", ErrInvalidInput, file.Count)
	}
	if len(file.Values) != file.Count {
		return nil, fmt.Errorf("%w: count is %d but %d values present", ErrInvalidInput, file.Count, len(file.Values))
	}

	records := make([]types.EntitlementRecord, file.Count)
	seen := make(map[common.Address]int, file.Count)

	for i := 0; i < file.Count; i++ {
		value, ok := file.Values[strconv.Itoa(i)]
		if !ok {
			return nil, fmt.Errorf("%w: missing index %d", ErrInvalidInput, i)
		}

		record, err := parseValue(value)
		if err != nil {
			return nil, fmt.Errorf("%w: index %d: %v", ErrInvalidInput, i, err)
		}

		if prev, dup := seen[record.Recipient]; dup {
			return nil, fmt.Errorf("%w: recipient %s appears at both index %d and %d",
				ErrInvalidInput, record.Recipient.Hex(), prev, i)
		}
		seen[record.Recipient] = i
		records[i] = record
	}

	return records, nil
}

func parseValue(value map[string]string) (types.EntitlementRecord, error) {
	recipientStr, ok := value["0"]
	if !ok {
		return types.EntitlementRecord{}, fmt.Errorf("missing recipient field")
	}
	amountStr, ok := value["1"]
	if !ok {
		return types.EntitlementRecord{}, fmt.Errorf("missing amount field")
	}

	if !common.IsHexAddress(recipientStr) {
		return types.EntitlementRecord{}, fmt.Errorf("malformed address %q", recipientStr)
	}

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return types.EntitlementRecord{}, fmt.Errorf("malformed amount %q", amountStr)
	}
	if amount.Sign() < 0 {
		return types.EntitlementRecord{}, fmt.Errorf("negative amount %q", amountStr)
	}
	if amount.Cmp(codec.MaxAmount) > 0 {
		return types.EntitlementRecord{}, fmt.Errorf("amount %q exceeds 256 bits", amountStr)
	}

	return types.EntitlementRecord{
		Recipient: common.HexToAddress(recipientStr),
		Amount:    amount,
	}, nil
}

// Build hashes the records, builds the tree and assembles one proof
// bundle per leaf. Every generated proof is re-verified against the
// root before the artifact is returned.
func Build(records []types.EntitlementRecord, logger *zap.Logger) (*Artifact, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrInvalidInput)
	}

	leaves := make([][32]byte, len(records))
	for i, record := range records {
		leaf, err := codec.LeafHash(record.Recipient, record.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: index %d: %v", ErrInvalidInput, i, err)
		}
		leaves[i] = leaf
	}

	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build tree")
	}

	proofs, err := tree.GenerateAllProofs()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate proofs")
	}

	bundles := make([]ProofBundle, len(records))
	for i, proof := range proofs {
		if !proof.Verify(tree.Root) {
			return nil, errors.Errorf("self-check failed: proof for leaf %d does not verify against root", i)
		}

		siblings := make([]string, len(proof.Siblings))
		for j, sibling := range proof.Siblings {
			siblings[j] = hexutil.Encode(sibling[:])
		}

		bundles[i] = ProofBundle{
			Inputs: []string{records[i].Recipient.Hex(), records[i].Amount.String()},
			Proof:  siblings,
			Root:   hexutil.Encode(tree.Root[:]),
			Leaf:   hexutil.Encode(proof.Leaf[:]),
		}
	}

	logger.Sugar().Infow("Built commitment artifact",
		"records", len(records),
		"root", hexutil.Encode(tree.Root[:]),
	)

	return &Artifact{
		Root:    tree.Root,
		Records: records,
		Bundles: bundles,
	}, nil
}

// BuildFromFile runs the full pipeline from an entitlement list on disk.
func BuildFromFile(path string, logger *zap.Logger) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read entitlement list")
	}

	records, err := ParseEntitlementList(data)
	if err != nil {
		return nil, err
	}

	return Build(records, logger)
}

// WriteBundles writes the proof bundle array as indented JSON. The file
// is written in one shot after a successful build, so a failed build
// never leaves a partial artifact behind.
func (a *Artifact) WriteBundles(path string) error {
	data, err := json.MarshalIndent(a.Bundles, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal proof bundles")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write proof bundles")
	}
	return nil
}

// RootHex returns the 0x-prefixed root commitment.
func (a *Artifact) RootHex() string {
	return hexutil.Encode(a.Root[:])
}
