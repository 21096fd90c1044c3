package txkernel

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/rawblock/utxo-node/internal/hashutil"
	"github.com/rawblock/utxo-node/internal/mmr"
	"github.com/rawblock/utxo-node/internal/mutatorset"
)

// Encode renders the kernel as the wire format §6 describes: fields
// concatenated in declared order, var-int-prefixed where repeated. It
// reuses wire.WriteVarInt/ReadVarInt, the same var-int codec the
// teacher's Bitcoin RPC client already depends on transitively through
// btcd, so the kernel's own wire codec needs no new length-prefix
// convention of its own.
func (k Kernel) Encode() []byte {
	var buf bytes.Buffer
	writeVarInt(&buf, uint64(len(k.Inputs)))
	for _, rr := range k.Inputs {
		writeDigest(&buf, rr.ItemCommitment)
		writeVarInt(&buf, rr.AOCLLeafIndex)
		writeVarInt(&buf, uint64(len(rr.AbsoluteIndices)))
		for _, idx := range rr.AbsoluteIndices {
			writeVarInt(&buf, idx)
		}
		writeVarInt(&buf, rr.AOCLAuthPath.LeafIndex)
		writeVarInt(&buf, uint64(len(rr.AOCLAuthPath.Siblings)))
		for _, s := range rr.AOCLAuthPath.Siblings {
			writeDigest(&buf, s)
		}
	}

	writeVarInt(&buf, uint64(len(k.Outputs)))
	for _, ar := range k.Outputs {
		writeDigest(&buf, ar.Commitment)
	}

	writeVarInt(&buf, uint64(len(k.Announcements)))
	for _, a := range k.Announcements {
		writeDigest(&buf, a.ScriptHash)
		writeVarInt(&buf, uint64(len(a.InputBytes)))
		buf.Write(a.InputBytes)
	}

	writeVarInt(&buf, uint64(k.Fee))
	if k.Coinbase != nil {
		buf.WriteByte(1)
		writeVarInt(&buf, uint64(*k.Coinbase))
	} else {
		buf.WriteByte(0)
	}
	writeVarInt(&buf, uint64(k.TimestampMs))
	writeDigest(&buf, k.MutatorSetHash)

	return buf.Bytes()
}

// Decode reconstructs a Kernel from Encode's output (§8 property 4:
// decode(encode(k)) == k, and MastHash is preserved since it is a pure
// function of the decoded fields).
func Decode(data []byte) (Kernel, error) {
	r := bytes.NewReader(data)
	var k Kernel

	numInputs, err := readVarInt(r)
	if err != nil {
		return Kernel{}, fmt.Errorf("txkernel: decode input count: %w", err)
	}
	k.Inputs = make([]mutatorset.RemovalRecord, numInputs)
	for i := range k.Inputs {
		commitment, err := readDigest(r)
		if err != nil {
			return Kernel{}, fmt.Errorf("txkernel: decode input %d commitment: %w", i, err)
		}
		leafIndex, err := readVarInt(r)
		if err != nil {
			return Kernel{}, fmt.Errorf("txkernel: decode input %d leaf index: %w", i, err)
		}
		numIdx, err := readVarInt(r)
		if err != nil {
			return Kernel{}, fmt.Errorf("txkernel: decode input %d index count: %w", i, err)
		}
		indices := make([]uint64, numIdx)
		for j := range indices {
			indices[j], err = readVarInt(r)
			if err != nil {
				return Kernel{}, fmt.Errorf("txkernel: decode input %d index %d: %w", i, j, err)
			}
		}
		pathLeafIndex, err := readVarInt(r)
		if err != nil {
			return Kernel{}, fmt.Errorf("txkernel: decode input %d auth path index: %w", i, err)
		}
		numSiblings, err := readVarInt(r)
		if err != nil {
			return Kernel{}, fmt.Errorf("txkernel: decode input %d sibling count: %w", i, err)
		}
		siblings := make([]hashutil.Digest, numSiblings)
		for j := range siblings {
			siblings[j], err = readDigest(r)
			if err != nil {
				return Kernel{}, fmt.Errorf("txkernel: decode input %d sibling %d: %w", i, j, err)
			}
		}
		k.Inputs[i] = mutatorset.RemovalRecord{
			AbsoluteIndices: indices,
			AOCLLeafIndex:   leafIndex,
			AOCLAuthPath:    mmr.AuthPath{LeafIndex: pathLeafIndex, Siblings: siblings},
			ItemCommitment:  commitment,
		}
	}

	numOutputs, err := readVarInt(r)
	if err != nil {
		return Kernel{}, fmt.Errorf("txkernel: decode output count: %w", err)
	}
	k.Outputs = make([]mutatorset.AdditionRecord, numOutputs)
	for i := range k.Outputs {
		d, err := readDigest(r)
		if err != nil {
			return Kernel{}, fmt.Errorf("txkernel: decode output %d: %w", i, err)
		}
		k.Outputs[i] = mutatorset.AdditionRecord{Commitment: d}
	}

	numAnns, err := readVarInt(r)
	if err != nil {
		return Kernel{}, fmt.Errorf("txkernel: decode announcement count: %w", err)
	}
	k.Announcements = make([]Announcement, numAnns)
	for i := range k.Announcements {
		scriptHash, err := readDigest(r)
		if err != nil {
			return Kernel{}, fmt.Errorf("txkernel: decode announcement %d hash: %w", i, err)
		}
		n, err := readVarInt(r)
		if err != nil {
			return Kernel{}, fmt.Errorf("txkernel: decode announcement %d length: %w", i, err)
		}
		input := make([]byte, n)
		if _, err := readFull(r, input); err != nil {
			return Kernel{}, fmt.Errorf("txkernel: decode announcement %d bytes: %w", i, err)
		}
		k.Announcements[i] = Announcement{ScriptHash: scriptHash, InputBytes: input}
	}

	fee, err := readVarInt(r)
	if err != nil {
		return Kernel{}, fmt.Errorf("txkernel: decode fee: %w", err)
	}
	k.Fee = btcutil.Amount(fee)

	hasCoinbase, err := r.ReadByte()
	if err != nil {
		return Kernel{}, fmt.Errorf("txkernel: decode coinbase flag: %w", err)
	}
	if hasCoinbase == 1 {
		cb, err := readVarInt(r)
		if err != nil {
			return Kernel{}, fmt.Errorf("txkernel: decode coinbase amount: %w", err)
		}
		amt := btcutil.Amount(cb)
		k.Coinbase = &amt
	}

	ts, err := readVarInt(r)
	if err != nil {
		return Kernel{}, fmt.Errorf("txkernel: decode timestamp: %w", err)
	}
	k.TimestampMs = int64(ts)

	msHash, err := readDigest(r)
	if err != nil {
		return Kernel{}, fmt.Errorf("txkernel: decode mutator set hash: %w", err)
	}
	k.MutatorSetHash = msHash

	return k, nil
}

func writeVarInt(buf *bytes.Buffer, v uint64) {
	_ = wire.WriteVarInt(buf, 0, v)
}

func readVarInt(r *bytes.Reader) (uint64, error) {
	return wire.ReadVarInt(r, 0)
}

func writeDigest(buf *bytes.Buffer, d hashutil.Digest) {
	buf.Write(d[:])
}

func readDigest(r *bytes.Reader) (hashutil.Digest, error) {
	var d hashutil.Digest
	if _, err := readFull(r, d[:]); err != nil {
		return hashutil.Digest{}, err
	}
	return d, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if err != nil {
		return n, err
	}
	if n != len(buf) {
		return n, fmt.Errorf("txkernel: short read: got %d want %d", n, len(buf))
	}
	return n, nil
}
