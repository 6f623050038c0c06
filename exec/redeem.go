package exec

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	orderconfig "github.com/polymarket/go-order-utils/pkg/config"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/hedgebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ON-CHAIN REDEMPTION
// ═══════════════════════════════════════════════════════════════════════════════
//
// Redeems winning conditional-token positions against the CTF contract
// on Polygon (redeemPositions)
//
// ═══════════════════════════════════════════════════════════════════════════════

const ctfABIJSON = `[
  {"inputs":[
    {"internalType":"address","name":"collateralToken","type":"address"},
    {"internalType":"bytes32","name":"parentCollectionId","type":"bytes32"},
    {"internalType":"bytes32","name":"conditionId","type":"bytes32"},
    {"internalType":"uint256[]","name":"indexSets","type":"uint256[]"}
  ],"name":"redeemPositions","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// Redeemer sends redeemPositions transactions for resolved markets
type Redeemer struct {
	rpcURL     string
	privateKey *ecdsa.PrivateKey
	ctfABI     abi.ABI
}

// NewRedeemer creates the redemption client from an RPC endpoint and a
// hex-encoded private key
func NewRedeemer(rpcURL, pkHex string) (*Redeemer, error) {
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(pkHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	ctfABI, err := abi.JSON(strings.NewReader(ctfABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse CTF ABI: %w", err)
	}

	return &Redeemer{rpcURL: rpcURL, privateKey: pk, ctfABI: ctfABI}, nil
}

// Redeem claims the payout of a winning position. The index set picks
// the outcome slot: 1 for Up, 2 for Down.
func (r *Redeemer) Redeem(conditionID, tokenID string, outcome types.Side) (types.RedeemResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, r.rpcURL)
	if err != nil {
		return types.RedeemResult{}, fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return types.RedeemResult{}, fmt.Errorf("fetch chain id: %w", err)
	}

	contracts, err := orderconfig.GetContracts(chainID.Int64())
	if err != nil {
		return types.RedeemResult{}, fmt.Errorf("contracts for chain %d: %w", chainID.Int64(), err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(r.privateKey, chainID)
	if err != nil {
		return types.RedeemResult{}, err
	}
	opts.Context = ctx

	indexSet := big.NewInt(1)
	if outcome == types.SideDown {
		indexSet = big.NewInt(2)
	}

	contract := bind.NewBoundContract(contracts.Conditional, r.ctfABI, client, client, client)
	tx, err := contract.Transact(opts, "redeemPositions",
		contracts.Collateral,
		[32]byte{},
		common.HexToHash(conditionID),
		[]*big.Int{indexSet},
	)
	if err != nil {
		return types.RedeemResult{}, fmt.Errorf("redeemPositions: %w", err)
	}

	log.Info().
		Str("tx", tx.Hash().Hex()).
		Str("condition", shortToken(conditionID)).
		Str("outcome", string(outcome)).
		Msg("💰 Redemption submitted")

	return types.RedeemResult{Success: true, TxHash: tx.Hash().Hex()}, nil
}
