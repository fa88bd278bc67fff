package delta

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/checksum"
)

// DefaultLiteralCeiling is the largest span of literal bytes buffered
// before a Literal token is flushed early (spec.md 4.5 step 4's "on-wire
// literal ceiling").
const DefaultLiteralCeiling = 32 * 1024

// Emitter receives tokens produced by GenerateDelta, in order, terminated
// by a TokenEnd.
type Emitter func(Token) error

// GenerateDelta performs the rolling-window delta search described in
// spec.md 4.5: it slides a block_size window over target, querying idx for
// each position's weak checksum and confirming candidates with a strong
// hash, emitting Copy tokens for confirmed matches and Literal tokens for
// everything else. The stream always ends with a TokenEnd.
//
// Reading the whole target into memory trades the streaming-I/O
// generality a production implementation would want for a rolling search
// that is straightforward to read and verify; see DESIGN.md.
func GenerateDelta(target io.Reader, idx *Index, set *SignatureSet, algorithm checksum.Algorithm, seed checksum.Seed, literalCeiling int, emit Emitter) error {
	if literalCeiling <= 0 {
		literalCeiling = DefaultLiteralCeiling
	}

	data, err := io.ReadAll(target)
	if err != nil {
		return errors.Wrap(err, "unable to read target")
	}

	if set.IsEmpty() {
		if err := emitChunked(data, literalCeiling, emit); err != nil {
			return err
		}
		return emit(Token{Kind: TokenEnd})
	}

	hasher, err := checksum.NewStrongHasher(algorithm, seed, false)
	if err != nil {
		return errors.Wrap(err, "unable to construct strong hasher")
	}

	blockSize := int(set.BlockSize)
	n := len(data)

	var pending []byte
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := emitChunked(pending, literalCeiling, emit); err != nil {
			return err
		}
		pending = nil
		return nil
	}

	p := 0
	if p+blockSize <= n {
		var rolling checksum.Rolling
		weak := rolling.Compute(data[p : p+blockSize])

		for p+blockSize <= n {
			var matched bool
			var matchIndex uint64
			if candidates := idx.Lookup(weak); len(candidates) > 0 {
				strong := hasher.Sum(data[p:p+blockSize], set.StrongLen)
				for _, c := range candidates {
					if bytes.Equal(strong, c.Strong) {
						matched = true
						matchIndex = c.Index
						break
					}
				}
			}

			if matched {
				if err := flush(); err != nil {
					return err
				}
				if err := emit(Token{Kind: TokenCopy, BlockIndex: matchIndex}); err != nil {
					return err
				}
				p += blockSize
				if p+blockSize <= n {
					weak = rolling.Compute(data[p : p+blockSize])
				}
				continue
			}

			pending = append(pending, data[p])
			if len(pending) >= literalCeiling {
				if err := flush(); err != nil {
					return err
				}
			}
			if p+blockSize < n {
				weak = rolling.Roll(data[p], data[p+blockSize])
			}
			p++
		}
	}

	// Tail: fewer than block_size bytes remain. Try a short-block match
	// against the basis's final (possibly short) block before giving up
	// and treating the remainder as literal (spec.md 4.5's short-tail
	// case).
	tail := data[p:n]
	if len(tail) > 0 {
		if shortSig, ok := idx.ShortTail(); ok && set.Remainder != set.BlockSize && uint64(len(tail)) == set.Remainder {
			weak := checksum.ComputeWindow(tail)
			if weak == shortSig.Weak {
				strong := hasher.Sum(tail, set.StrongLen)
				if bytes.Equal(strong, shortSig.Strong) {
					if err := flush(); err != nil {
						return err
					}
					if err := emit(Token{Kind: TokenCopy, BlockIndex: shortSig.Index}); err != nil {
						return err
					}
					tail = nil
				}
			}
		}
		if len(tail) > 0 {
			pending = append(pending, tail...)
		}
	}

	if err := flush(); err != nil {
		return err
	}
	return emit(Token{Kind: TokenEnd})
}

// emitChunked splits data into Literal tokens no larger than ceiling.
func emitChunked(data []byte, ceiling int, emit Emitter) error {
	for len(data) > 0 {
		chunk := data
		if len(chunk) > ceiling {
			chunk = chunk[:ceiling]
		}
		if err := emit(Token{Kind: TokenLiteral, Literal: chunk}); err != nil {
			return err
		}
		data = data[len(chunk):]
	}
	return nil
}
