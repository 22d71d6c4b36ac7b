package rpcclient

import (
	"context"
	"fmt"

	"github.com/cellchain/cellwallet/pkg/block"
	"github.com/cellchain/cellwallet/pkg/tx"
	"github.com/cellchain/cellwallet/pkg/types"
)

// heightParam is the params object for height-keyed chain methods.
type heightParam struct {
	Height uint64 `json:"height"`
}

// GetTipHeader returns the header of the remote chain tip.
func (c *Client) GetTipHeader(ctx context.Context) (*block.Header, error) {
	var h block.Header
	if err := c.Call(ctx, "chain_getTipHeader", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GetHeader returns the header at the given height.
func (c *Client) GetHeader(ctx context.Context, height uint64) (*block.Header, error) {
	var h block.Header
	if err := c.Call(ctx, "chain_getHeaderByHeight", heightParam{Height: height}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GetBlock returns the full block at the given height.
func (c *Client) GetBlock(ctx context.Context, height uint64) (*block.Block, error) {
	var b block.Block
	if err := c.Call(ctx, "chain_getBlockByHeight", heightParam{Height: height}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// submitParam wraps a transaction for tx_submit.
type submitParam struct {
	Transaction *tx.Transaction `json:"transaction"`
}

// submitResult is the server's answer to tx_submit.
type submitResult struct {
	TxHash types.Hash `json:"tx_hash"`
}

// SubmitTransaction broadcasts a signed transaction and returns the
// hash the node accepted it under.
func (c *Client) SubmitTransaction(ctx context.Context, t *tx.Transaction) (types.Hash, error) {
	var res submitResult
	if err := c.Call(ctx, "tx_submit", submitParam{Transaction: t}, &res); err != nil {
		return types.Hash{}, fmt.Errorf("submitting transaction: %w", err)
	}
	return res.TxHash, nil
}

// ChainInfo is the node's self-description from chain_getInfo.
type ChainInfo struct {
	Network   string     `json:"network"`
	TipHeight uint64     `json:"tip_height"`
	TipHash   types.Hash `json:"tip_hash"`
}

// GetChainInfo returns the remote node's network name and tip.
func (c *Client) GetChainInfo(ctx context.Context) (*ChainInfo, error) {
	var info ChainInfo
	if err := c.Call(ctx, "chain_getInfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
