package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/probanet/proba-go/model/proba"
)

const (

	// codes for singleton values
	codeConfirmedHeight = 1 // the indexer's confirmed-block watermark
	codeChainHead       = 2 // newest disclosed index of the local hash chain

	// codes for indexed entities
	codeChannelEntry = 10 // channel entries keyed by canonical party pair
	codeChannelState = 11 // tracked on-chain snapshots keyed by counterparty
	codeNonce        = 12 // consumed nonces keyed by channel and nonce
	codeTicket       = 13 // acknowledged tickets keyed by channel and challenge
	codeCheckpoint   = 14 // hash chain checkpoints keyed by chain index
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, i)
		return b
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case proba.Address:
		return i.Bytes()
	case proba.Hash:
		return i.Bytes()
	case []byte:
		return i
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
