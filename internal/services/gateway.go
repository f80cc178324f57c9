package services

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

type TxStatus uint8

const (
	TxStatusPending TxStatus = iota
	TxStatusSuccess
	TxStatusFailed
)

// ChainGateway is the transaction-submission capability of the funding
// wallet. Signing and broadcasting are separate steps so the engine can
// persist the signed transaction before it goes on the wire.
type ChainGateway interface {
	// Refresh re-reads the wallet nonce, called once per batch.
	Refresh(ctx context.Context) error
	// SignTransfer builds and signs a native-coin transfer and consumes
	// the next nonce. It does not broadcast.
	SignTransfer(ctx context.Context, to string, amount *big.Int) (txHash string, rawtx []byte, err error)
	Broadcast(ctx context.Context, rawtx []byte) error
	TransactionStatus(ctx context.Context, txHash string) (TxStatus, error)
	Balance(ctx context.Context) (*big.Int, error)
}

// EthGateway drives a JSON-RPC endpoint with one shared funding wallet.
// Callers must serialize SignTransfer calls, the nonce is a plain
// counter on purpose: batch execution is strictly sequential.
type EthGateway struct {
	Client       *ethclient.Client
	Prvkey       *ecdsa.PrivateKey
	Account      common.Address
	Eip155Signer types.Signer

	nonce uint64
}

func NewEthGateway(client *ethclient.Client, prvkey *ecdsa.PrivateKey, account common.Address, chainId *big.Int) *EthGateway {
	return &EthGateway{
		Client:       client,
		Prvkey:       prvkey,
		Account:      account,
		Eip155Signer: types.NewEIP155Signer(chainId),
	}
}

func (g *EthGateway) Refresh(basectx context.Context) (err error) {
	newctx, cancel := context.WithTimeout(basectx, time.Second*5)
	defer cancel()
	g.nonce, err = g.Client.PendingNonceAt(newctx, g.Account)
	return
}

func (g *EthGateway) SignTransfer(basectx context.Context, to string, amount *big.Int) (string, []byte, error) {
	newctx, cancel := context.WithTimeout(basectx, time.Second*10)
	defer cancel()

	gasPrice, err := g.Client.SuggestGasPrice(newctx)
	if err != nil {
		return "", nil, fmt.Errorf("SignTransfer: gas price: %w", err)
	}

	receiver := common.HexToAddress(to)
	gas, err := g.Client.EstimateGas(newctx,
		ethereum.CallMsg{From: g.Account, To: &receiver, Value: amount})
	if err != nil {
		return "", nil, fmt.Errorf("SignTransfer: estimate gas: %w", err)
	}

	tx, err := types.SignNewTx(g.Prvkey, g.Eip155Signer, &types.LegacyTx{
		Nonce:    g.nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &receiver,
		Value:    amount,
	})
	if err != nil {
		return "", nil, fmt.Errorf("SignTransfer: sign: %w", err)
	}

	rawtx, err := tx.MarshalBinary()
	if err != nil {
		return "", nil, fmt.Errorf("SignTransfer: encode: %w", err)
	}

	g.nonce += 1
	return tx.Hash().Hex(), rawtx, nil
}

func (g *EthGateway) Broadcast(basectx context.Context, rawtx []byte) error {
	var tx = new(types.Transaction)
	if err := tx.UnmarshalBinary(rawtx); err != nil {
		return fmt.Errorf("Broadcast: decode: %w", err)
	}

	newctx, cancel := context.WithTimeout(basectx, time.Second*10)
	defer cancel()
	if err := g.Client.SendTransaction(newctx, tx); err != nil {
		return fmt.Errorf("Broadcast: %w", err)
	}
	return nil
}

func (g *EthGateway) TransactionStatus(basectx context.Context, txHash string) (TxStatus, error) {
	newctx, cancel := context.WithTimeout(basectx, time.Second*5)
	defer cancel()

	receipt, err := g.Client.TransactionReceipt(newctx, common.HexToHash(txHash))
	if err != nil {
		if err == ethereum.NotFound {
			return TxStatusPending, nil
		}
		return TxStatusPending, fmt.Errorf("TransactionStatus: %w", err)
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return TxStatusSuccess, nil
	}
	return TxStatusFailed, nil
}

func (g *EthGateway) Balance(basectx context.Context) (*big.Int, error) {
	newctx, cancel := context.WithTimeout(basectx, time.Second*5)
	defer cancel()

	balance, err := g.Client.BalanceAt(newctx, g.Account, nil)
	if err != nil {
		return nil, fmt.Errorf("Balance: %w", err)
	}
	return balance, nil
}
