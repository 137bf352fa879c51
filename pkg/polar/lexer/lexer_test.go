package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polar-vm/polarvm/pkg/polar/perr"
)

func kinds(t *testing.T, src string) []Kind {
	t.Helper()
	toks, err := All(src, 0)
	require.NoError(t, err)
	ks := make([]Kind, len(toks))
	for i, tok := range toks {
		ks[i] = tok.Kind
	}
	return ks
}

func TestAllTokenizesPunctuationAndOperators(t *testing.T) {
	require.Equal(t, []Kind{
		KindLParen, KindSymbol, KindComma, KindSymbol, KindRParen,
		KindUnify, KindEq, KindNeq, KindLeq, KindGeq, KindLt, KindGt,
		KindEOF,
	}, kinds(t, `(x, y) = == != <= >= < >`))
}

func TestAllTokenizesIntegerAndFloat(t *testing.T) {
	toks, err := All(`1 2.5 3e2 4.5e-1`, 0)
	require.NoError(t, err)
	require.Equal(t, KindInteger, toks[0].Kind)
	require.EqualValues(t, 1, toks[0].IntVal)
	require.Equal(t, KindFloat, toks[1].Kind)
	require.InDelta(t, 2.5, toks[1].FloatVal, 0.0001)
	require.Equal(t, KindFloat, toks[2].Kind)
	require.InDelta(t, 300.0, toks[2].FloatVal, 0.0001)
	require.Equal(t, KindFloat, toks[3].Kind)
	require.InDelta(t, 0.45, toks[3].FloatVal, 0.0001)
}

func TestAllTokenizesStringWithEscapes(t *testing.T) {
	toks, err := All(`"a\nb\tc\"d"`, 0)
	require.NoError(t, err)
	require.Equal(t, KindString, toks[0].Kind)
	require.Equal(t, "a\nb\tc\"d", toks[0].Text)
}

func TestAllTokenizesKeywordsAndBooleans(t *testing.T) {
	require.Equal(t, []Kind{KindIf, KindAnd, KindOr, KindNot, KindIn, KindCut, KindBoolean, KindBoolean, KindEOF},
		kinds(t, `if and or not in cut true false`))
}

func TestAllTokenizesQueryMarker(t *testing.T) {
	toks, err := All(`?= f(x);`, 0)
	require.NoError(t, err)
	require.Equal(t, KindQuery, toks[0].Kind)
	require.Equal(t, "?=", toks[0].Text)
}

func TestAllTokenizesSymbolWithNamespaceAndQuestionMark(t *testing.T) {
	toks, err := All(`foo::Bar is_valid?`, 0)
	require.NoError(t, err)
	require.Equal(t, KindSymbol, toks[0].Kind)
	require.Equal(t, "foo::Bar", toks[0].Text)
	require.Equal(t, KindSymbol, toks[1].Kind)
	require.Equal(t, "is_valid?", toks[1].Text)
}

func TestAllSkipsCommentsAndWhitespace(t *testing.T) {
	toks, err := All("# a comment\n  x # trailing\n", 0)
	require.NoError(t, err)
	require.Equal(t, KindSymbol, toks[0].Kind)
	require.Equal(t, "x", toks[0].Text)
	require.Equal(t, KindEOF, toks[1].Kind)
}

func TestAllRejectsBareBang(t *testing.T) {
	_, err := All(`!`, 0)
	require.Error(t, err)
	polarErr, ok := err.(*perr.PolarError)
	require.True(t, ok, "expected *perr.PolarError, got %T", err)
	require.Equal(t, perr.CategoryParse, polarErr.Category)
}

func TestAllRejectsUnterminatedString(t *testing.T) {
	_, err := All(`"unterminated`, 0)
	require.Error(t, err)
}

func TestAllRejectsInvalidCharacter(t *testing.T) {
	_, err := All("@", 0)
	require.Error(t, err)
	polarErr, ok := err.(*perr.PolarError)
	require.True(t, ok, "expected *perr.PolarError, got %T", err)
	require.Equal(t, perr.KindInvalidTokenCharacter, polarErr.Kind)
}

func TestAllEmitsSpansWithSourceID(t *testing.T) {
	toks, err := All(`x`, 7)
	require.NoError(t, err)
	require.Equal(t, 7, toks[0].Span.SourceID)
	require.Equal(t, 0, toks[0].Span.Left)
	require.Equal(t, 1, toks[0].Span.Right)
}
