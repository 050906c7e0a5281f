package solana

import (
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// AccountMeta describes how an instruction references an account.
type AccountMeta struct {
	Pubkey     string
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation before message compilation.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// Signer produces signatures for transaction messages.
type Signer interface {
	Pubkey() string
	Sign(message []byte) []byte
}

// MessageHeader is the legacy message header.
type MessageHeader struct {
	NumRequiredSignatures uint8
	NumReadonlySigned     uint8
	NumReadonlyUnsigned   uint8
}

// CompiledInstruction references accounts by index into the message's
// account table.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

// Message is a compiled legacy transaction message.
type Message struct {
	Header          MessageHeader
	AccountKeys     []string
	RecentBlockhash string
	Instructions    []CompiledInstruction
}

type accountEntry struct {
	pubkey   string
	signer   bool
	writable bool
}

// CompileMessage compiles instructions into a legacy message. The fee
// payer is placed first; remaining accounts are ordered writable
// signers, readonly signers, writable non-signers, readonly
// non-signers, preserving first-reference order within each class.
func CompileMessage(feePayer, recentBlockhash string, instructions []Instruction) (*Message, error) {
	if feePayer == "" {
		return nil, fmt.Errorf("fee payer required")
	}
	if recentBlockhash == "" {
		return nil, fmt.Errorf("recent blockhash required")
	}
	if len(instructions) == 0 {
		return nil, fmt.Errorf("no instructions")
	}

	index := map[string]int{}
	var entries []*accountEntry

	upsert := func(pubkey string, signer, writable bool) {
		if i, ok := index[pubkey]; ok {
			entries[i].signer = entries[i].signer || signer
			entries[i].writable = entries[i].writable || writable
			return
		}
		index[pubkey] = len(entries)
		entries = append(entries, &accountEntry{pubkey: pubkey, signer: signer, writable: writable})
	}

	upsert(feePayer, true, true)
	for _, ix := range instructions {
		if ix.ProgramID == "" {
			return nil, fmt.Errorf("instruction missing program id")
		}
		for _, meta := range ix.Accounts {
			upsert(meta.Pubkey, meta.IsSigner, meta.IsWritable)
		}
		upsert(ix.ProgramID, false, false)
	}

	var keys []string
	appendClass := func(signer, writable bool) {
		for _, e := range entries {
			if e.signer == signer && e.writable == writable && e.pubkey != feePayer {
				keys = append(keys, e.pubkey)
			}
		}
	}
	keys = append(keys, feePayer)
	appendClass(true, true)
	appendClass(true, false)
	appendClass(false, true)
	appendClass(false, false)

	if len(keys) > 256 {
		return nil, fmt.Errorf("too many accounts: %d", len(keys))
	}

	keyIndex := make(map[string]uint8, len(keys))
	for i, k := range keys {
		keyIndex[k] = uint8(i)
	}

	var header MessageHeader
	for _, e := range entries {
		if e.signer {
			header.NumRequiredSignatures++
			if !e.writable {
				header.NumReadonlySigned++
			}
		} else if !e.writable {
			header.NumReadonlyUnsigned++
		}
	}

	compiled := make([]CompiledInstruction, len(instructions))
	for i, ix := range instructions {
		ci := CompiledInstruction{
			ProgramIDIndex: keyIndex[ix.ProgramID],
			Data:           ix.Data,
		}
		for _, meta := range ix.Accounts {
			ci.AccountIndexes = append(ci.AccountIndexes, keyIndex[meta.Pubkey])
		}
		compiled[i] = ci
	}

	return &Message{
		Header:          header,
		AccountKeys:     keys,
		RecentBlockhash: recentBlockhash,
		Instructions:    compiled,
	}, nil
}

// Serialize renders the message in the legacy wire format.
func (m *Message) Serialize() ([]byte, error) {
	var out []byte
	out = append(out, m.Header.NumRequiredSignatures, m.Header.NumReadonlySigned, m.Header.NumReadonlyUnsigned)

	out = appendShortvecLen(out, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		raw, err := base58.Decode(key)
		if err != nil {
			return nil, fmt.Errorf("decode account key %s: %w", key, err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("account key %s is %d bytes, want 32", key, len(raw))
		}
		out = append(out, raw...)
	}

	hash, err := base58.Decode(m.RecentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("decode blockhash: %w", err)
	}
	if len(hash) != 32 {
		return nil, fmt.Errorf("blockhash is %d bytes, want 32", len(hash))
	}
	out = append(out, hash...)

	out = appendShortvecLen(out, len(m.Instructions))
	for _, ix := range m.Instructions {
		out = append(out, ix.ProgramIDIndex)
		out = appendShortvecLen(out, len(ix.AccountIndexes))
		out = append(out, ix.AccountIndexes...)
		out = appendShortvecLen(out, len(ix.Data))
		out = append(out, ix.Data...)
	}

	return out, nil
}

// appendShortvecLen appends a compact-u16 length prefix.
func appendShortvecLen(out []byte, n int) []byte {
	v := uint16(n)
	for v >= 0x80 {
		out = append(out, byte(v)|0x80)
		v >>= 7
	}
	return append(out, byte(v))
}

// Transaction is a signed legacy transaction.
type Transaction struct {
	Signatures [][]byte
	Message    *Message

	messageBytes []byte
}

// SignTransaction serializes the message and collects one signature per
// required signer, in account-table order.
func SignTransaction(msg *Message, signers ...Signer) (*Transaction, error) {
	msgBytes, err := msg.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serialize message: %w", err)
	}

	byPubkey := make(map[string]Signer, len(signers))
	for _, s := range signers {
		byPubkey[s.Pubkey()] = s
	}

	n := int(msg.Header.NumRequiredSignatures)
	if n > len(msg.AccountKeys) {
		return nil, fmt.Errorf("header requires %d signers but message has %d accounts", n, len(msg.AccountKeys))
	}

	sigs := make([][]byte, 0, n)
	for _, key := range msg.AccountKeys[:n] {
		s, ok := byPubkey[key]
		if !ok {
			return nil, fmt.Errorf("no signer for required account %s", key)
		}
		sigs = append(sigs, s.Sign(msgBytes))
	}

	return &Transaction{
		Signatures:   sigs,
		Message:      msg,
		messageBytes: msgBytes,
	}, nil
}

// Serialize renders the full signed transaction.
func (t *Transaction) Serialize() ([]byte, error) {
	msgBytes := t.messageBytes
	if msgBytes == nil {
		var err error
		msgBytes, err = t.Message.Serialize()
		if err != nil {
			return nil, err
		}
	}

	var out []byte
	out = appendShortvecLen(out, len(t.Signatures))
	for _, sig := range t.Signatures {
		if len(sig) != 64 {
			return nil, fmt.Errorf("signature is %d bytes, want 64", len(sig))
		}
		out = append(out, sig...)
	}
	return append(out, msgBytes...), nil
}

// Base58 returns the serialized transaction base58-encoded, the form
// the bundle relay expects.
func (t *Transaction) Base58() (string, error) {
	raw, err := t.Serialize()
	if err != nil {
		return "", err
	}
	return base58.Encode(raw), nil
}

// Base64 returns the serialized transaction base64-encoded, the form
// simulateTransaction expects.
func (t *Transaction) Base64() (string, error) {
	raw, err := t.Serialize()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// PrimarySignature returns the fee payer's signature base58-encoded.
// This is the transaction's on-chain identity.
func (t *Transaction) PrimarySignature() string {
	if len(t.Signatures) == 0 {
		return ""
	}
	return base58.Encode(t.Signatures[0])
}
