package tx

// Witness sizes for signature-lock inputs: a Schnorr signature plus a
// compressed secp256k1 public key.
const (
	sigSize    = 64
	pubKeySize = 33
)

// EstimateFee returns the fee for a not-yet-built transaction with the
// given shape at the given fee rate (base units per byte). argsLen is
// the lock-args length used for outputs (20 for standard address
// locks).
//
// Size model: version(4) + input_count(4) + output_count(4), then per
// input outpoint(36) + signature(64) + pubkey(33), and per output
// capacity(8) + code_hash(32) + args_len(4) + args + 2 presence flags.
func EstimateFee(numInputs, numOutputs, argsLen int, feeRate uint64) uint64 {
	const overhead = 4 + 4 + 4
	const perInput = 36 + sigSize + pubKeySize
	perOutput := 8 + 32 + 4 + argsLen + 2

	size := overhead + perInput*numInputs + perOutput*numOutputs
	return uint64(size) * feeRate
}

// RequiredFee returns the exact fee for a fully built transaction at
// the given fee rate, from its signing bytes plus the witness data of
// every input. More accurate than EstimateFee for transactions with
// data outputs or non-standard args.
func RequiredFee(transaction *Transaction, feeRate uint64) uint64 {
	size := len(transaction.SigningBytes())
	for _, in := range transaction.Inputs {
		size += len(in.Signature) + len(in.PubKey)
	}
	return uint64(size) * feeRate
}
