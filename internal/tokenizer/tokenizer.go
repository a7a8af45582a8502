// Package tokenizer counts prompt tokens with the cl100k_base encoding.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

// Tokenizer counts tokens. The encoding is loaded lazily on first use and
// cached for the process lifetime.
type Tokenizer struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func New() *Tokenizer {
	return &Tokenizer{}
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) (int, error) {
	t.once.Do(func() {
		t.enc, t.err = tiktoken.GetEncoding(encodingName)
	})
	if t.err != nil {
		return 0, fmt.Errorf("tokenizer.Count: %w", t.err)
	}

	return len(t.enc.Encode(text, nil, nil)), nil
}
