package delta

import (
	"github.com/pkg/errors"

	"github.com/synctree/rsyncd/pkg/wire"
)

// TokenKind distinguishes the three delta token shapes (spec.md 4.5's
// "Token wire encoding").
type TokenKind uint8

// Token kinds.
const (
	TokenLiteral TokenKind = iota
	TokenCopy
	TokenEnd
)

// Token is one unit of a delta stream: a span of literal bytes, a
// reference to a basis block, or the end-of-delta marker.
type Token struct {
	Kind       TokenKind
	Literal    []byte
	BlockIndex uint64
}

// WriteToken encodes t per spec.md 4.5: a signed-varint length field where
// positive means a literal of that many bytes follows, negative encodes a
// block match as -(index+1), and zero marks the end of the delta.
func WriteToken(w wire.Writer, t Token) error {
	switch t.Kind {
	case TokenLiteral:
		if len(t.Literal) == 0 {
			return errors.New("literal token with no data")
		}
		if err := wire.WriteSignedVarint(w, int64(len(t.Literal))); err != nil {
			return errors.Wrap(err, "unable to write literal length")
		}
		if _, err := w.Write(t.Literal); err != nil {
			return errors.Wrap(err, "unable to write literal data")
		}
		return nil
	case TokenCopy:
		value := -(int64(t.BlockIndex) + 1)
		if err := wire.WriteSignedVarint(w, value); err != nil {
			return errors.Wrap(err, "unable to write block index")
		}
		return nil
	case TokenEnd:
		return errors.Wrap(wire.WriteSignedVarint(w, 0), "unable to write end marker")
	default:
		return errors.Errorf("unknown token kind %d", t.Kind)
	}
}

// ReadToken decodes one token written by WriteToken.
func ReadToken(r wire.Reader) (Token, error) {
	length, err := wire.ReadSignedVarint(r)
	if err != nil {
		return Token{}, errors.Wrap(err, "unable to read token length")
	}
	switch {
	case length == 0:
		return Token{Kind: TokenEnd}, nil
	case length > 0:
		buf := make([]byte, length)
		if err := readFull(r, buf); err != nil {
			return Token{}, errors.Wrap(err, "unable to read literal data")
		}
		return Token{Kind: TokenLiteral, Literal: buf}, nil
	default:
		blockIndex := uint64(-length - 1)
		return Token{Kind: TokenCopy, BlockIndex: blockIndex}, nil
	}
}

// readFull reads exactly len(buf) bytes from r.
func readFull(r wire.Reader, buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return err
		}
	}
	return nil
}
