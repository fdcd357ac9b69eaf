// Package bleu computes corpus-level BLEU over whole hypothesis and
// reference files, following the mteval-13a tokenization and the exponential
// smoothing used by the reference scorer the pipeline replaces.
package bleu

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

const maxOrder = 4

var ErrLengthMismatch = errors.New("hypothesis and reference counts differ")

// Result carries the corpus score and its components.
type Result struct {
	Score      float64
	Precisions [maxOrder]float64
	BP         float64
	SysLen     int
	RefLen     int
}

func (r Result) String() string {
	return fmt.Sprintf("BLEU = %.2f %.1f/%.1f/%.1f/%.1f (BP = %.3f sys_len = %d ref_len = %d)",
		r.Score,
		r.Precisions[0], r.Precisions[1], r.Precisions[2], r.Precisions[3],
		r.BP, r.SysLen, r.RefLen)
}

var (
	rePunct      = regexp.MustCompile("([\\{-\\~\\[-\\` -\\&\\(-\\+\\:-\\@\\/])")
	rePeriodPre  = regexp.MustCompile(`([^0-9])([\.,])`)
	rePeriodPost = regexp.MustCompile(`([\.,])([^0-9])`)
	reDash       = regexp.MustCompile(`([0-9])(-)`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// Tokenize13a splits a segment the way mteval-v13a does: punctuation is
// padded with spaces except inside numbers.
func Tokenize13a(s string) []string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = rePunct.ReplaceAllString(s, " $1 ")
	s = rePeriodPre.ReplaceAllString(s, "$1 $2 ")
	s = rePeriodPost.ReplaceAllString(s, " $1 $2")
	s = reDash.ReplaceAllString(s, "$1 - ")
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	if s == "" {
		return nil
	}
	return strings.Split(s, " ")
}

// Corpus scores hypotheses against one or more reference streams. Every
// stream must align with the hypotheses line by line.
func Corpus(hypotheses []string, refStreams [][]string) (Result, error) {
	if len(refStreams) == 0 {
		return Result{}, errors.New("at least one reference stream is required")
	}
	for _, refs := range refStreams {
		if len(refs) != len(hypotheses) {
			return Result{}, fmt.Errorf("%w: %d hypotheses, %d references",
				ErrLengthMismatch, len(hypotheses), len(refs))
		}
	}

	var correct, total [maxOrder]int
	var sysLen, refLen int

	for i, hyp := range hypotheses {
		hypToks := Tokenize13a(hyp)
		sysLen += len(hypToks)

		refToksets := make([][]string, 0, len(refStreams))
		for _, refs := range refStreams {
			refToksets = append(refToksets, Tokenize13a(refs[i]))
		}
		refLen += closestLength(refToksets, len(hypToks))

		for n := 1; n <= maxOrder; n++ {
			hypGrams := countNgrams(hypToks, n)
			refGrams := maxRefNgrams(refToksets, n)

			for gram, cnt := range hypGrams {
				total[n-1] += cnt
				if rc, ok := refGrams[gram]; ok {
					if cnt < rc {
						correct[n-1] += cnt
					} else {
						correct[n-1] += rc
					}
				}
			}
		}
	}

	return assemble(correct, total, sysLen, refLen), nil
}

func assemble(correct, total [maxOrder]int, sysLen, refLen int) Result {
	res := Result{SysLen: sysLen, RefLen: refLen, BP: 1.0}
	if sysLen == 0 {
		return res
	}
	if sysLen < refLen {
		res.BP = math.Exp(1 - float64(refLen)/float64(sysLen))
	}

	// Exponential smoothing: each zero numerator halves the smoothed value.
	// Orders with no realizable n-grams (every hypothesis shorter than n)
	// reduce the effective order instead of zeroing the score.
	smooth := 1.0
	logSum := 0.0
	effOrder := 0
	for n := 0; n < maxOrder; n++ {
		if total[n] == 0 {
			break
		}
		effOrder = n + 1
		if correct[n] == 0 {
			smooth *= 2
			res.Precisions[n] = 100.0 / (smooth * float64(total[n]))
		} else {
			res.Precisions[n] = 100.0 * float64(correct[n]) / float64(total[n])
		}
		logSum += math.Log(res.Precisions[n])
	}
	if effOrder == 0 {
		return res
	}

	res.Score = res.BP * math.Exp(logSum/float64(effOrder))
	return res
}

func countNgrams(toks []string, n int) map[string]int {
	grams := make(map[string]int)
	for i := 0; i+n <= len(toks); i++ {
		grams[strings.Join(toks[i:i+n], "\x1f")]++
	}
	return grams
}

// maxRefNgrams clips against the maximum count of each n-gram over all
// references.
func maxRefNgrams(refToksets [][]string, n int) map[string]int {
	grams := make(map[string]int)
	for _, toks := range refToksets {
		for gram, cnt := range countNgrams(toks, n) {
			if cnt > grams[gram] {
				grams[gram] = cnt
			}
		}
	}
	return grams
}

// closestLength picks the reference length nearest to the hypothesis length,
// breaking ties toward the shorter reference.
func closestLength(refToksets [][]string, hypLen int) int {
	best := len(refToksets[0])
	for _, toks := range refToksets[1:] {
		l := len(toks)
		dBest := abs(best - hypLen)
		dCur := abs(l - hypLen)
		if dCur < dBest || (dCur == dBest && l < best) {
			best = l
		}
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
