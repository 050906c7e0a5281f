package solana

import "encoding/binary"

// Well-known program IDs.
const (
	SystemProgramID        = "11111111111111111111111111111111"
	ComputeBudgetProgramID = "ComputeBudget111111111111111111111111111111"
)

// System program instruction indexes.
const sysTransferIndex = 2

// Compute budget instruction tags.
const (
	computeUnitLimitTag = 2
	computeUnitPriceTag = 3
)

// NewTransferInstruction builds a system-program lamport transfer.
func NewTransferInstruction(from, to string, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], sysTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsWritable: true},
		},
		Data: data,
	}
}

// NewComputeUnitLimitInstruction sets the transaction's compute-unit limit.
func NewComputeUnitLimitInstruction(units uint32) Instruction {
	data := make([]byte, 5)
	data[0] = computeUnitLimitTag
	binary.LittleEndian.PutUint32(data[1:5], units)

	return Instruction{
		ProgramID: ComputeBudgetProgramID,
		Data:      data,
	}
}

// NewComputeUnitPriceInstruction sets the priority fee in micro-lamports
// per compute unit.
func NewComputeUnitPriceInstruction(microLamports uint64) Instruction {
	data := make([]byte, 9)
	data[0] = computeUnitPriceTag
	binary.LittleEndian.PutUint64(data[1:9], microLamports)

	return Instruction{
		ProgramID: ComputeBudgetProgramID,
		Data:      data,
	}
}
