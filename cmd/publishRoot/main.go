package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"

	"github.com/merkledrop-labs/merkledrop-go/pkg/config"
	"github.com/merkledrop-labs/merkledrop-go/pkg/logger"
	"github.com/merkledrop-labs/merkledrop-go/pkg/registry"
	"github.com/merkledrop-labs/merkledrop-go/pkg/transactionSigner"
)

func main() {
	app := &cli.App{
		Name:  "publishRoot",
		Usage: "Publish a root commitment to the on-chain root registry",
		Description: `Publish the root produced by merkledrop-builder to the root registry
contract, or read back the root a distributor last published.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "rpc-url",
				Usage:    "Ethereum RPC endpoint",
				EnvVars:  []string{config.EnvDropRPCURL},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "registry-address",
				Aliases:  []string{"registry"},
				Usage:    "Root registry contract address",
				EnvVars:  []string{config.EnvDropRegistryAddress},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "private-key",
				Aliases: []string{"priv"},
				Usage:   "ECDSA private key (hex string) for signing the submission",
				EnvVars: []string{config.EnvDropPrivateKey},
			},
			&cli.Uint64Flag{
				Name:     "chain-id",
				Aliases:  []string{"chain"},
				Usage:    "Chain ID: " + config.GetSupportedChainIDsString(),
				EnvVars:  []string{config.EnvDropChainID},
				Required: true,
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "0x-prefixed 32-byte root to submit",
			},
			&cli.StringFlag{
				Name:  "distributor",
				Usage: "Read back the root published by this distributor instead of submitting",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvDropVerbose},
			},
		},
		Action: runPublish,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runPublish(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	ctx := context.Background()

	ethClient, err := ethclient.Dial(c.String("rpc-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to RPC: %w", err)
	}
	defer ethClient.Close()

	registryAddress := common.HexToAddress(c.String("registry-address"))

	// Read-back mode needs no signer
	if distributor := c.String("distributor"); distributor != "" {
		if !common.IsHexAddress(distributor) {
			return fmt.Errorf("malformed distributor address %q", distributor)
		}

		client, err := registry.NewContractClient(registryAddress, ethClient, nil, l)
		if err != nil {
			return err
		}

		root, submittedAt, err := client.GetRoot(ctx, common.HexToAddress(distributor))
		if err != nil {
			return fmt.Errorf("failed to read root: %w", err)
		}

		fmt.Printf("Distributor: %s\n", common.HexToAddress(distributor).Hex())
		fmt.Printf("Root: %s\n", hexutil.Encode(root[:]))
		fmt.Printf("Submitted at: %d\n", submittedAt)
		return nil
	}

	cfg := &config.PublisherConfig{
		RpcUrl:          c.String("rpc-url"),
		RegistryAddress: c.String("registry-address"),
		PrivateKey:      c.String("private-key"),
		ChainID:         config.ChainId(c.Uint64("chain-id")),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	root, err := decodeRoot(c.String("root"))
	if err != nil {
		return err
	}

	signer, err := transactionSigner.NewTransactionSigner(&transactionSigner.SignerConfig{
		PrivateKey: cfg.PrivateKey,
	}, ethClient, l)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}

	client, err := registry.NewContractClient(registryAddress, ethClient, signer, l)
	if err != nil {
		return err
	}

	receipt, err := client.SubmitRoot(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to submit root: %w", err)
	}

	fmt.Printf("Root published\n")
	fmt.Printf("  Root: %s\n", hexutil.Encode(root[:]))
	fmt.Printf("  Tx: %s\n", receipt.TxHash.Hex())
	fmt.Printf("  Block: %d\n", receipt.BlockNumber.Uint64())
	return nil
}

func decodeRoot(rootHex string) ([32]byte, error) {
	var root [32]byte
	if rootHex == "" {
		return root, fmt.Errorf("--root is required when submitting")
	}
	raw, err := hexutil.Decode(rootHex)
	if err != nil {
		return root, fmt.Errorf("malformed root %q: %w", rootHex, err)
	}
	if len(raw) != 32 {
		return root, fmt.Errorf("root must be 32 bytes, got %d", len(raw))
	}
	copy(root[:], raw)
	return root, nil
}
