// Package vocab loads and manipulates subword vocabularies produced for the
// translation toolkit, and decodes SentencePiece output back to plain text
// for scoring.
package vocab

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Default special tokens, in the order the toolkit appends them.
const (
	BOS = "<s>"
	EOS = "</s>"
	UNK = "<unk>"
	PAD = "<blank>"
)

// wordSep is the SentencePiece whitespace marker (U+2581).
const wordSep = "▁"

func DefaultSpecials() []string {
	return []string{BOS, EOS, UNK, PAD}
}

type Vocab struct {
	itos     []string
	stoi     map[string]int
	specials []string
}

// New builds a vocabulary from pieces. Specials are stripped from the input
// and re-appended at the end, so their indices are stable regardless of
// where a piece file happens to list them.
func New(items []string, specials []string) *Vocab {
	if specials == nil {
		specials = DefaultSpecials()
	}
	v := &Vocab{stoi: make(map[string]int), specials: specials}

	isSpecial := make(map[string]bool, len(specials))
	for _, s := range specials {
		isSpecial[s] = true
	}
	for _, item := range items {
		if !isSpecial[item] {
			v.add(item)
		}
	}
	for _, s := range specials {
		v.add(s)
	}
	return v
}

func (v *Vocab) add(tok string) {
	if _, ok := v.stoi[tok]; ok {
		return
	}
	v.stoi[tok] = len(v.itos)
	v.itos = append(v.itos, tok)
}

// Lookup returns the index of tok, or zero for unknown pieces.
func (v *Vocab) Lookup(tok string) int {
	return v.stoi[tok]
}

// Piece returns the token at index i.
func (v *Vocab) Piece(i int) (string, bool) {
	if i < 0 || i >= len(v.itos) {
		return "", false
	}
	return v.itos[i], true
}

func (v *Vocab) Len() int {
	return len(v.itos)
}

func (v *Vocab) Specials() []string {
	return v.specials
}

func (v *Vocab) String() string {
	return fmt.Sprintf("Vocab (%d items, specials=%v)", v.Len(), v.specials)
}

// ReadFile loads a plain-text vocabulary: one token per line, optionally
// followed by a count. Rows with a malformed count column are dropped with a
// warning, matching the toolkit's loader.
func ReadFile(path string) ([]string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("open vocabulary %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, false, nil
	}

	// The first row decides whether the file carries counts.
	first := strings.Fields(lines[0])
	hasCount := len(first) == 2 && isDigits(first[1])

	tokens := make([]string, 0, len(lines))
	dropped := 0
	for _, line := range lines {
		fields := strings.Fields(line)
		if hasCount {
			if len(fields) != 2 {
				dropped++
				continue
			}
			tokens = append(tokens, fields[0])
		} else {
			tokens = append(tokens, fields[0])
		}
	}
	if dropped > 0 {
		log.WithFields(log.Fields{"path": path, "dropped": dropped}).
			Warn("dropped invalid vocabulary entries")
	}
	return tokens, hasCount, nil
}

// FromFile loads a vocabulary file with the default specials.
func FromFile(path string) (*Vocab, error) {
	tokens, _, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(tokens, nil), nil
}

// Merge interleaves vocabularies round-robin so the head of the merged vocab
// draws evenly from every input, and caps the interleaved list at size
// entries when size > 0. Specials are deduplicated in first-seen order and
// always survive the cap.
func Merge(size int, vocabs ...*Vocab) *Vocab {
	var specials []string
	seen := make(map[string]bool)
	for _, v := range vocabs {
		for _, s := range v.specials {
			if !seen[s] {
				seen[s] = true
				specials = append(specials, s)
			}
		}
	}

	items := roundrobin(vocabs)
	if size > 0 && len(items) > size {
		items = items[:size]
	}
	return New(items, specials)
}

func roundrobin(vocabs []*Vocab) []string {
	var out []string
	for i := 0; ; i++ {
		exhausted := true
		for _, v := range vocabs {
			if i < len(v.itos) {
				exhausted = false
				out = append(out, v.itos[i])
			}
		}
		if exhausted {
			return out
		}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DecodePieces reverses SentencePiece encoding: pieces are concatenated and
// the word separator marker becomes a space.
func DecodePieces(pieces []string) string {
	joined := strings.Join(pieces, "")
	joined = strings.ReplaceAll(joined, wordSep, " ")
	return strings.TrimSpace(joined)
}

// DecodeHypothesisLine decodes one line of toolkit translation output. The
// final token of each line is the sentence terminator and is dropped before
// decoding.
func DecodeHypothesisLine(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return DecodePieces(fields[:len(fields)-1])
}
