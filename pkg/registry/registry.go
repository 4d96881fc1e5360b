// Package registry publishes root commitments to the on-chain root
// registry and reads them back. The registry keeps one root per
// distributor address; recipients resolve the root out of band and
// verify their proof bundles against it.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/transactionSigner"
)

// rootRegistryABI covers the two registry entry points this client uses.
const rootRegistryABI = `[
	{"type":"function","name":"submitRoot","stateMutability":"nonpayable","inputs":[{"name":"root","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"getRoot","stateMutability":"view","inputs":[{"name":"distributor","type":"address"}],"outputs":[{"name":"root","type":"bytes32"},{"name":"submittedAt","type":"uint64"}]}
]`

// Client defines the interface for root registry operations
type Client interface {
	// SubmitRoot publishes the caller's root commitment.
	SubmitRoot(ctx context.Context, root [32]byte) (*types.Receipt, error)

	// GetRoot returns the root a distributor last published and when.
	GetRoot(ctx context.Context, distributor common.Address) ([32]byte, uint64, error)
}

// ContractClient talks to the deployed root registry contract
type ContractClient struct {
	contract  *bind.BoundContract
	address   common.Address
	ethclient *ethclient.Client
	signer    transactionSigner.ITransactionSigner
	logger    *zap.Logger
}

func NewContractClient(
	registryAddress common.Address,
	ethClient *ethclient.Client,
	signer transactionSigner.ITransactionSigner,
	logger *zap.Logger,
) (*ContractClient, error) {
	parsed, err := abi.JSON(strings.NewReader(rootRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse root registry ABI: %w", err)
	}

	return &ContractClient{
		contract:  bind.NewBoundContract(registryAddress, parsed, ethClient, ethClient, ethClient),
		address:   registryAddress,
		ethclient: ethClient,
		signer:    signer,
		logger:    logger,
	}, nil
}

// SubmitRoot publishes a root commitment to the registry contract
func (c *ContractClient) SubmitRoot(ctx context.Context, root [32]byte) (*types.Receipt, error) {
	txOpts, err := c.signer.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction options: %w", err)
	}

	tx, err := c.contract.Transact(txOpts, "submitRoot", root)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	c.logger.Sugar().Infow("Submitting root to registry",
		"registry", c.address.Hex(),
		"root", common.Bytes2Hex(root[:]),
		"from", c.signer.GetFromAddress().Hex(),
	)

	return c.signer.SignAndSendTransaction(ctx, tx)
}

// GetRoot queries the published root for a distributor
func (c *ContractClient) GetRoot(ctx context.Context, distributor common.Address) ([32]byte, uint64, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getRoot", distributor)
	if err != nil {
		return [32]byte{}, 0, fmt.Errorf("failed to get root: %w", err)
	}

	root := *abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	submittedAt := *abi.ConvertType(out[1], new(uint64)).(*uint64)
	return root, submittedAt, nil
}
