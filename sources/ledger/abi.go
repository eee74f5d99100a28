package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Contract methods read by the monitor
const (
	methodWorldRadius  = "worldRadius()"
	methodPlayerCount  = "getNPlayers()"
	methodCountByLevel = "initializedPlanetCountByLevel(uint256)"
)

// wordSize is the size of an ABI encoded static value
const wordSize = 32

// selector returns the 4 byte function selector of a method signature
func selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

// callData encodes a call to signature with static uint arguments
func callData(signature string, args ...uint64) string {
	buf := make([]byte, 0, 4+wordSize*len(args))
	buf = append(buf, selector(signature)...)
	for _, a := range args {
		word := make([]byte, wordSize)
		binary.BigEndian.PutUint64(word[wordSize-8:], a)
		buf = append(buf, word...)
	}
	return "0x" + hex.EncodeToString(buf)
}

// decodeWord decodes the first 32 byte word of a hex encoded call result
func decodeWord(result string) ([]byte, error) {
	s := strings.TrimPrefix(result, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex in call result: %v", err)
	}
	if len(b) < wordSize {
		return nil, fmt.Errorf("call result too short: %d bytes", len(b))
	}
	return b[:wordSize], nil
}

// decodeUint64 decodes a uint256 result that must fit in 64 bits
func decodeUint64(result string) (uint64, error) {
	word, err := decodeWord(result)
	if err != nil {
		return 0, err
	}
	for _, b := range word[:wordSize-8] {
		if b != 0 {
			return 0, fmt.Errorf("call result %s overflows uint64", result)
		}
	}
	return binary.BigEndian.Uint64(word[wordSize-8:]), nil
}

// decodeLow64 decodes the low 64 bits of a uint256 result
func decodeLow64(result string) (uint64, error) {
	word, err := decodeWord(result)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(word[wordSize-8:]), nil
}

// normalizeAddress returns a lowercase 0x-prefixed contract address
func normalizeAddress(addr string) (string, error) {
	s := strings.ToLower(strings.TrimPrefix(addr, "0x"))
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 20 {
		return "", fmt.Errorf("invalid contract address %q", addr)
	}
	return "0x" + s, nil
}
