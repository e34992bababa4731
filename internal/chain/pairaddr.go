package chain

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// PairAddress derives the CREATE2 address of a Uniswap-V2-style pair from
// the factory address, the two token addresses, and the factory's pair init
// code hash. Token order does not matter; the factory sorts tokens by
// address before deployment.
func PairAddress(factory, tokenA, tokenB, initCodeHash string) (string, error) {
	init := common.FromHex(initCodeHash)
	if len(init) != 32 {
		return "", fmt.Errorf("chain: init code hash must be 32 bytes, got %d", len(init))
	}

	f := common.HexToAddress(factory)
	t0 := common.HexToAddress(tokenA)
	t1 := common.HexToAddress(tokenB)
	if bytes.Compare(t0.Bytes(), t1.Bytes()) > 0 {
		t0, t1 = t1, t0
	}

	salt := keccak256(append(t0.Bytes(), t1.Bytes()...))

	msg := make([]byte, 0, 1+20+32+32)
	msg = append(msg, 0xff)
	msg = append(msg, f.Bytes()...)
	msg = append(msg, salt...)
	msg = append(msg, init...)

	return common.BytesToAddress(keccak256(msg)[12:]).Hex(), nil
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
