package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the claim server configuration
const (
	EnvDropPort            = "DROP_PORT"
	EnvDropChainID         = "DROP_CHAIN_ID"
	EnvDropRoot            = "DROP_ROOT"
	EnvDropDomainName      = "DROP_DOMAIN_NAME"
	EnvDropDomainVersion   = "DROP_DOMAIN_VERSION"
	EnvDropVerifierAddress = "DROP_VERIFIER_ADDRESS"
	EnvDropStoreType       = "DROP_STORE_TYPE"
	EnvDropBadgerDir       = "DROP_BADGER_DIR"
	EnvDropRedisAddress    = "DROP_REDIS_ADDRESS"
	EnvDropRedisPassword   = "DROP_REDIS_PASSWORD"
	EnvDropRedisDB         = "DROP_REDIS_DB"
	EnvDropRPCURL          = "DROP_RPC_URL"
	EnvDropRegistryAddress = "DROP_REGISTRY_ADDRESS"
	EnvDropPrivateKey      = "DROP_PRIVATE_KEY"
	EnvDropVerbose         = "DROP_VERBOSE"
)

// StoreType selects the claimed-flag persistence backend.
type StoreType string

func (s StoreType) String() string {
	return string(s)
}

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeBadger StoreType = "badger"
	StoreTypeRedis  StoreType = "redis"
)

// SupportedStoreTypes returns the accepted store backends for CLI help.
func SupportedStoreTypes() []StoreType {
	return []StoreType{StoreTypeMemory, StoreTypeBadger, StoreTypeRedis}
}

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}

// GetSupportedChainIDsString returns supported chain IDs for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

// ServerConfig represents the complete configuration for a claim server
type ServerConfig struct {
	Port int `json:"port"`

	// Chain configuration; the chain id is part of the signature domain
	ChainID   ChainId   `json:"chain_id"`
	ChainName ChainName `json:"chain_name"`

	// Commitment configuration
	Root            string `json:"root"`             // 0x-prefixed 32-byte root digest
	DomainName      string `json:"domain_name"`      // EIP-712 domain name
	DomainVersion   string `json:"domain_version"`   // EIP-712 domain version
	VerifierAddress string `json:"verifier_address"` // verifying-contract address bound into the domain

	// Claimed-flag store
	Store StoreConfig `json:"store"`

	// Operational settings
	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// Validate validates the claim server configuration
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1-65535, got %d", c.Port)
	}

	chainName, exists := ChainIdToName[c.ChainID]
	if !exists {
		return fmt.Errorf("unsupported chain ID %d. Supported: %s", c.ChainID, GetSupportedChainIDsString())
	}
	c.ChainName = chainName

	if _, err := c.RootDigest(); err != nil {
		return err
	}

	if c.DomainName == "" {
		return fmt.Errorf("domain name cannot be empty")
	}
	if c.DomainVersion == "" {
		return fmt.Errorf("domain version cannot be empty")
	}
	if c.VerifierAddress != "" && !common.IsHexAddress(c.VerifierAddress) {
		return fmt.Errorf("invalid verifier address format: %s", c.VerifierAddress)
	}

	return c.Store.Validate()
}

// RootDigest decodes the configured root commitment.
func (c *ServerConfig) RootDigest() ([32]byte, error) {
	var root [32]byte
	if c.Root == "" {
		return root, fmt.Errorf("root commitment cannot be empty")
	}
	raw, err := hexutil.Decode(c.Root)
	if err != nil {
		return root, fmt.Errorf("invalid root commitment %q: %w", c.Root, err)
	}
	if len(raw) != 32 {
		return root, fmt.Errorf("root commitment must be 32 bytes, got %d", len(raw))
	}
	copy(root[:], raw)
	return root, nil
}

// Verifier returns the verifying-contract address bound into the
// signature domain; the zero address when unconfigured.
func (c *ServerConfig) Verifier() common.Address {
	return common.HexToAddress(c.VerifierAddress)
}

// StoreConfig selects and parameterizes the claimed-flag backend.
type StoreConfig struct {
	Type          StoreType `json:"type"`
	BadgerDir     string    `json:"badger_dir,omitempty"`
	RedisAddress  string    `json:"redis_address,omitempty"`
	RedisPassword string    `json:"redis_password,omitempty"`
	RedisDB       int       `json:"redis_db,omitempty"`
}

func (sc *StoreConfig) Validate() error {
	var allErrors field.ErrorList

	switch sc.Type {
	case StoreTypeMemory:
		// nothing to configure
	case StoreTypeBadger:
		if sc.BadgerDir == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("badgerDir"), "badger data directory is required"))
		}
	case StoreTypeRedis:
		if sc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redis address is required"))
		}
		if sc.RedisDB < 0 || sc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDB"), sc.RedisDB, "must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("type"), sc.Type, []StoreType{StoreTypeMemory, StoreTypeBadger, StoreTypeRedis}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// PublisherConfig configures the root publication client.
type PublisherConfig struct {
	RpcUrl          string  `json:"rpc_url"`
	RegistryAddress string  `json:"registry_address"`
	PrivateKey      string  `json:"private_key"`
	ChainID         ChainId `json:"chain_id"`
}

func (pc *PublisherConfig) Validate() error {
	var allErrors field.ErrorList

	if pc.RpcUrl == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "rpc url is required"))
	}
	if pc.RegistryAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("registryAddress"), "registry address is required"))
	} else if !common.IsHexAddress(pc.RegistryAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("registryAddress"), pc.RegistryAddress, "not a hex address"))
	}
	if pc.PrivateKey == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("privateKey"), "private key is required"))
	}
	if _, exists := ChainIdToName[pc.ChainID]; !exists {
		allErrors = append(allErrors, field.Invalid(field.NewPath("chainId"), pc.ChainID, "unsupported chain"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
