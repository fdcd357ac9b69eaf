package services

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"slt-training-harness/internal/bleu"
	"slt-training-harness/internal/vocab"
)

// ScoreFiles computes corpus BLEU for a toolkit prediction file against a
// reference file. Hypothesis lines are SentencePiece output: the trailing
// terminator token is dropped and the remaining pieces decoded. References
// are either plain text (one sentence per line) or the dataset's
// pipe-separated annotation CSV, recognized by extension.
func ScoreFiles(hypPath, refPath string) (bleu.Result, error) {
	hyps, err := loadHypotheses(hypPath)
	if err != nil {
		return bleu.Result{}, err
	}
	refs, err := LoadReferences(refPath)
	if err != nil {
		return bleu.Result{}, err
	}
	return bleu.Corpus(hyps, [][]string{refs})
}

func loadHypotheses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hypotheses %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var hyps []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		hyps = append(hyps, vocab.DecodeHypothesisLine(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read hypotheses %s: %w", path, err)
	}
	return hyps, nil
}

// LoadReferences reads reference translations. CSV files use the annotation
// format of the corpus: '|'-separated columns with a header row containing a
// "translation" column.
func LoadReferences(path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return loadReferenceCSV(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open references %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var refs []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		refs = append(refs, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read references %s: %w", path, err)
	}
	return refs, nil
}

func loadReferenceCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open references %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.Comma = '|'
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read reference header %s: %w", path, err)
	}
	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "translation") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("reference file %s has no translation column", path)
	}

	var refs []string
	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read references %s: %w", path, err)
		}
		if col >= len(record) {
			continue
		}
		refs = append(refs, strings.TrimSpace(record[col]))
	}
	return refs, nil
}
