package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn := tok.Tokenize("red running shoes", 10)
	if len(ids) != 10 {
		t.Errorf("len(ids)=%d", len(ids))
	}
	if ids[0] != 49406 {
		t.Errorf("expected start token 49406, got %d", ids[0])
	}
	if attn[0] != 1 {
		t.Error("attention[0] should be 1")
	}
	if ids[4] != 49407 {
		t.Errorf("expected end token 49407 after 3 words, got %d", ids[4])
	}
	if attn[5] != 0 {
		t.Error("padding positions should have zero attention")
	}
}

func TestSimpleTokenizer_TruncatesLongText(t *testing.T) {
	tok := &SimpleTokenizer{}
	long := ""
	for i := 0; i < 20; i++ {
		long += "word "
	}
	ids, attn := tok.Tokenize(long, 8)
	if len(ids) != 8 || len(attn) != 8 {
		t.Errorf("lengths: %d, %d", len(ids), len(attn))
	}
	if attn[7] != 1 {
		t.Error("last position should carry the end token")
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  a  b  c  ")
	if len(words) != 3 {
		t.Errorf("expected 3 words, got %v", words)
	}
	if SplitWords("") != nil {
		t.Error("empty string should return nil")
	}
}

func TestHashString(t *testing.T) {
	h := HashString("abc")
	if h == 0 {
		t.Error("hash should be non-zero")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
}
