// Package decode turns raw program-log frames from the Log Source into two
// tagged records: Creation and Swap. It never touches the network or the
// Store; it is a pure function of a log frame.
package decode

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"pumpsentinel/internal/errs"
	"pumpsentinel/pkg/types"
)

const (
	pubkeyLen = 32

	// discriminatorLen is the fixed 8-byte Anchor event-discriminator prefix.
	discriminatorLen = 8
)

// createDiscriminator and tradeDiscriminator are the fixed 8-byte prefixes
// that distinguish a Creation payload from a Swap payload, following the
// Anchor convention (sha256("event:<Name>")[:8]) with the canonical
// pump.fun-style event names.
var (
	createDiscriminator = eventDiscriminator("CreateEvent")
	tradeDiscriminator  = eventDiscriminator("TradeEvent")
)

func eventDiscriminator(eventName string) [discriminatorLen]byte {
	sum := sha256.Sum256([]byte("event:" + eventName))
	var d [discriminatorLen]byte
	copy(d[:], sum[:discriminatorLen])
	return d
}

// Frame is one notification delivered by the Log Source.
type Frame struct {
	Slot      uint64
	Signature string
	Logs      []string
	Err       *string // non-nil means the transaction failed; frame is discarded
}

// Decoder recognizes Creation and Swap payloads within a Frame's log lines.
type Decoder struct {
	programID  string
	createDisc [discriminatorLen]byte
	tradeDisc  [discriminatorLen]byte
}

// New constructs a Decoder scoped to a single target program ID.
func New(programID string) *Decoder {
	return &Decoder{
		programID:  programID,
		createDisc: createDiscriminator,
		tradeDisc:  tradeDiscriminator,
	}
}

// Decode scans a frame's logs for exactly one recognized payload. It returns
// (creation, nil, nil), (nil, swap, nil), or (nil, nil, nil) when the frame
// carries no recognized payload for this program. A malformed payload
// (length mismatch, discriminator present but fields truncated) yields a
// DecodeError; the caller drops the frame and continues.
func (d *Decoder) Decode(f Frame) (*types.CreationEvent, *types.SwapEvent, error) {
	if f.Err != nil {
		return nil, nil, errs.Decode("decode.Decode", fmt.Errorf("frame has transaction error: %s", *f.Err))
	}

	inProgram := false
	instruction := ""

	for _, line := range f.Logs {
		switch {
		case strings.Contains(line, "Program "+d.programID+" invoke"):
			inProgram = true
			instruction = ""
			continue
		case strings.Contains(line, "Program "+d.programID+" success"),
			strings.Contains(line, "Program "+d.programID+" failed"):
			inProgram = false
			instruction = ""
			continue
		}

		if !inProgram {
			continue
		}

		if kind, ok := instructionKind(line); ok {
			instruction = kind
			continue
		}

		payload, ok := programDataPayload(line)
		if !ok {
			continue
		}

		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, nil, errs.Decode("decode.Decode", fmt.Errorf("base64 decode program data: %w", err))
		}
		if len(raw) < discriminatorLen {
			return nil, nil, errs.Decode("decode.Decode", fmt.Errorf("program data shorter than discriminator: %d bytes", len(raw)))
		}

		var disc [discriminatorLen]byte
		copy(disc[:], raw[:discriminatorLen])
		body := raw[discriminatorLen:]

		switch {
		case disc == d.createDisc && instruction == "Create":
			ev, err := decodeCreation(body, f)
			if err != nil {
				return nil, nil, errs.Decode("decode.decodeCreation", err)
			}
			return ev, nil, nil

		case disc == d.tradeDisc && (instruction == "Buy" || instruction == "Sell"):
			ev, err := decodeSwap(body, f, instruction == "Buy")
			if err != nil {
				return nil, nil, errs.Decode("decode.decodeSwap", err)
			}
			return nil, ev, nil
		}
	}

	return nil, nil, nil
}

func instructionKind(line string) (string, bool) {
	const prefix = "Program log: Instruction: "
	idx := strings.Index(line, prefix)
	if idx < 0 {
		return "", false
	}
	kind := strings.TrimSpace(line[idx+len(prefix):])
	switch kind {
	case "Create", "Buy", "Sell":
		return kind, true
	default:
		return "", false
	}
}

func programDataPayload(line string) (string, bool) {
	const prefix = "Program data: "
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(prefix):]), true
}

// decodeCreation parses the Borsh-encoded body of a Creation event:
// name (string), symbol (string), uri (string), mint (pubkey), bonding_curve
// (pubkey), user (pubkey).
func decodeCreation(body []byte, f Frame) (*types.CreationEvent, error) {
	r := bytes.NewReader(body)

	name, err := readBorshString(r)
	if err != nil {
		return nil, fmt.Errorf("read name: %w", err)
	}
	symbol, err := readBorshString(r)
	if err != nil {
		return nil, fmt.Errorf("read symbol: %w", err)
	}
	uri, err := readBorshString(r)
	if err != nil {
		return nil, fmt.Errorf("read uri: %w", err)
	}
	mint, err := readPubkey(r)
	if err != nil {
		return nil, fmt.Errorf("read mint: %w", err)
	}
	bondingCurve, err := readPubkey(r)
	if err != nil {
		return nil, fmt.Errorf("read bonding_curve: %w", err)
	}
	user, err := readPubkey(r)
	if err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}

	return &types.CreationEvent{
		Signature:    f.Signature,
		Slot:         f.Slot,
		Name:         name,
		Symbol:       symbol,
		URI:          uri,
		Mint:         mint,
		BondingCurve: bondingCurve,
		User:         user,
		Timestamp:    time.Now().UTC(),
	}, nil
}

// decodeSwap parses the Borsh-encoded body of a Swap event: mint (pubkey),
// sol_amount (u64), token_amount (u64), is_buy (bool, overridden by the
// instruction log line which is authoritative), user (pubkey), timestamp
// (i64), virtual_sol_reserves (u64), virtual_token_reserves (u64).
func decodeSwap(body []byte, f Frame, isBuy bool) (*types.SwapEvent, error) {
	r := bytes.NewReader(body)

	mint, err := readPubkey(r)
	if err != nil {
		return nil, fmt.Errorf("read mint: %w", err)
	}
	solAmount, err := readU64(r)
	if err != nil {
		return nil, fmt.Errorf("read sol_amount: %w", err)
	}
	tokenAmount, err := readU64(r)
	if err != nil {
		return nil, fmt.Errorf("read token_amount: %w", err)
	}
	if _, err := readBool(r); err != nil {
		return nil, fmt.Errorf("read is_buy: %w", err)
	}
	user, err := readPubkey(r)
	if err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}
	timestamp, err := readI64(r)
	if err != nil {
		return nil, fmt.Errorf("read timestamp: %w", err)
	}
	vsr, err := readU64(r)
	if err != nil {
		return nil, fmt.Errorf("read virtual_sol_reserves: %w", err)
	}
	vtr, err := readU64(r)
	if err != nil {
		return nil, fmt.Errorf("read virtual_token_reserves: %w", err)
	}

	return &types.SwapEvent{
		Signature:            f.Signature,
		Slot:                 f.Slot,
		Mint:                 mint,
		User:                 user,
		IsBuy:                isBuy,
		SolAmount:            solAmount,
		TokenAmount:          tokenAmount,
		Timestamp:            timestamp,
		VirtualSolReserves:   vsr,
		VirtualTokenReserves: vtr,
	}, nil
}

func readBorshString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read %d string bytes: %w", n, err)
	}
	return string(buf), nil
}

func readPubkey(r *bytes.Reader) (string, error) {
	buf := make([]byte, pubkeyLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read pubkey: %w", err)
	}
	return base58.Encode(buf), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readI64(r *bytes.Reader) (int64, error) {
	var v int64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}
