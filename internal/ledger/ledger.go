// Package ledger sends the strike-two USDC payment on Base.
package ledger

import (
	"context"
	"crypto/ecdsa"
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/julianstephens/habitenforcer/internal/errors"
	"github.com/julianstephens/habitenforcer/internal/logger"
)

const (
	usdcDecimals          = 6
	gasBuffer             = 10_000
	fallbackGasLimit      = 100_000
	DefaultConfirmTimeout = 120 * time.Second
	confirmationPending   = "confirmation pending"
)

var (
	ErrNotConfigured     = stderrors.New("value transfer not configured")
	ErrUnreachable       = stderrors.New("ledger network unreachable")
	ErrInsufficientFunds = stderrors.New("insufficient token balance")
	ErrNoGas             = stderrors.New("no native balance for gas")
	ErrBroadcast         = stderrors.New("transaction broadcast failed")
	ErrReverted          = stderrors.New("transaction reverted on chain")
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var tokenABI = mustParseABI(erc20ABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Client is the slice of an Ethereum JSON-RPC client the executor uses.
// *ethclient.Client satisfies it.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Dialer opens a Client for an RPC URL.
type Dialer func(ctx context.Context, rpcURL string) (Client, error)

// DialEthclient is the production Dialer.
func DialEthclient(ctx context.Context, rpcURL string) (Client, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Network describes one deployment of USDC.
type Network struct {
	Name     string
	ChainID  int64
	Token    common.Address
	Explorer string
}

var (
	BaseMainnet = Network{
		Name:     "base",
		ChainID:  8453,
		Token:    common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		Explorer: "https://basescan.org/tx/",
	}
	BaseSepolia = Network{
		Name:     "base-sepolia",
		ChainID:  84532,
		Token:    common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		Explorer: "https://sepolia.basescan.org/tx/",
	}
)

// NetworkFor selects Sepolia when the RPC URL mentions it.
func NetworkFor(rpcURL string) Network {
	if strings.Contains(strings.ToLower(rpcURL), "sepolia") {
		return BaseSepolia
	}
	return BaseMainnet
}

type Config struct {
	RPCURL         string
	PrivateKey     string
	Recipient      string
	ConfirmTimeout time.Duration
}

// TransferResult is the outcome of one Transfer call. Err is set, as an
// *errors.Error, exactly when Success is false.
type TransferResult struct {
	Success      bool
	TxHash       string
	ExplorerLink string
	AmountUSD    float64
	Pending      bool
	Note         string
	Err          error
}

type Executor struct {
	cfg     Config
	dial    Dialer
	network Network
}

func NewExecutor(cfg Config, dial Dialer) *Executor {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if dial == nil {
		dial = DialEthclient
	}
	return &Executor{cfg: cfg, dial: dial, network: NetworkFor(cfg.RPCURL)}
}

func (e *Executor) Network() Network { return e.network }

// ToUnits converts dollars to USDC base units.
func ToUnits(usd float64) *big.Int {
	return big.NewInt(int64(math.Round(usd * math.Pow10(usdcDecimals))))
}

func formatUnits(v *big.Int) string {
	f := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(math.Pow10(usdcDecimals)))
	return f.Text('f', 2)
}

func fail(kind errors.Kind, sentinel error, format string, args ...any) TransferResult {
	return TransferResult{Err: errors.Wrap(kind, sentinel, fmt.Sprintf(format, args...))}
}

func (e *Executor) key() (*ecdsa.PrivateKey, common.Address, error) {
	if e.cfg.PrivateKey == "" || e.cfg.Recipient == "" || e.cfg.RPCURL == "" {
		return nil, common.Address{}, ErrNotConfigured
	}
	if !common.IsHexAddress(e.cfg.Recipient) {
		return nil, common.Address{}, fmt.Errorf("%w: invalid recipient address %q", ErrNotConfigured, e.cfg.Recipient)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(e.cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("%w: invalid private key: %v", ErrNotConfigured, err)
	}
	return key, common.HexToAddress(e.cfg.Recipient), nil
}

// Transfer sends amountUSD of USDC to the configured recipient. It never
// retries: a broadcast transaction is reported as success even when the
// receipt does not arrive before ConfirmTimeout.
func (e *Executor) Transfer(ctx context.Context, amountUSD float64) TransferResult {
	key, recipient, err := e.key()
	if err != nil {
		return TransferResult{AmountUSD: amountUSD, Err: errors.Wrap(errors.KindConfiguration, err, "")}
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	client, err := e.dial(ctx, e.cfg.RPCURL)
	if err != nil {
		return fail(errors.KindExternalService, ErrUnreachable, "dial %s: %v", e.network.Name, err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fail(errors.KindExternalService, ErrUnreachable, "query chain id: %v", err)
	}

	amount := ToUnits(amountUSD)
	balance, err := e.tokenBalance(ctx, client, from)
	if err != nil {
		return fail(errors.KindExternalService, ErrUnreachable, "query USDC balance: %v", err)
	}
	if balance.Cmp(amount) < 0 {
		return fail(errors.KindExternalService, ErrInsufficientFunds, "have %s USDC, need %s USDC", formatUnits(balance), formatUnits(amount))
	}

	gasBalance, err := client.BalanceAt(ctx, from, nil)
	if err != nil {
		return fail(errors.KindExternalService, ErrUnreachable, "query native balance: %v", err)
	}
	if gasBalance.Sign() <= 0 {
		return fail(errors.KindExternalService, ErrNoGas, "wallet %s holds no ETH for gas", from.Hex())
	}

	signed, err := e.signTransfer(ctx, client, key, from, recipient, amount, chainID)
	if err != nil {
		return fail(errors.KindExternalService, ErrBroadcast, "%v", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return fail(errors.KindExternalService, ErrBroadcast, "send transaction: %v", err)
	}

	hash := signed.Hash().Hex()
	res := TransferResult{
		Success:      true,
		TxHash:       hash,
		ExplorerLink: e.network.Explorer + hash,
		AmountUSD:    amountUSD,
	}
	logger.Info("USDC transfer broadcast", "tx_hash", hash, "amount_usd", amountUSD, "network", e.network.Name)

	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, client, signed)
	if err != nil {
		logger.Warn("Timed out waiting for transfer receipt", "tx_hash", hash, "error", err)
		res.Pending = true
		res.Note = confirmationPending
		return res
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return TransferResult{
			TxHash:       hash,
			ExplorerLink: res.ExplorerLink,
			AmountUSD:    amountUSD,
			Err:          errors.Wrap(errors.KindOnChainFailure, ErrReverted, "tx "+hash),
		}
	}
	res.Note = fmt.Sprintf("confirmed in block %s", receipt.BlockNumber)
	return res
}

func (e *Executor) tokenBalance(ctx context.Context, c Client, owner common.Address) (*big.Int, error) {
	data, err := tokenABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	token := e.network.Token
	out, err := c.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	values, err := tokenABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected balanceOf result length %d", len(values))
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", values[0])
	}
	return balance, nil
}

func (e *Executor) signTransfer(ctx context.Context, c Client, key *ecdsa.PrivateKey, from, to common.Address, amount, chainID *big.Int) (*types.Transaction, error) {
	data, err := tokenABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("encode transfer: %w", err)
	}
	nonce, err := c.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("query nonce: %w", err)
	}
	gasPrice, err := c.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("query gas price: %w", err)
	}

	token := e.network.Token
	gas, err := c.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &token, Data: data})
	if err != nil {
		logger.Debug("Gas estimation failed, using fallback limit", "error", err, "gas", fallbackGasLimit)
		gas = fallbackGasLimit
	} else {
		gas += gasBuffer
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &token,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}
