// Package beaver rewrites transcripts so they are about beavers.
package beaver

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Mode selects how aggressively a transcript is rewritten.
type Mode string

const (
	ModeMild    Mode = "mild"
	ModeClassic Mode = "classic"
	ModeMaximum Mode = "maximum"
)

// ErrUnknownMode is returned by ParseMode for names outside the three modes.
var ErrUnknownMode = errors.New("unknown beaver mode")

// Modes lists the accepted modes in display order.
var Modes = []Mode{ModeMild, ModeClassic, ModeMaximum}

// ParseMode maps a user-supplied name to a Mode. Empty means classic.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return ModeClassic, nil
	case ModeMild:
		return ModeMild, nil
	case ModeClassic:
		return ModeClassic, nil
	case ModeMaximum:
		return ModeMaximum, nil
	}
	return "", fmt.Errorf("%w: %q (want mild, classic, or maximum)", ErrUnknownMode, s)
}

var classicKeywords = map[string]string{
	"love":   "respect for beaver society",
	"fight":  "dam dispute",
	"build":  "construct a dam",
	"family": "beaver colony",
	"river":  "beaver highway",
	"city":   "dam metropolis",
	"tree":   "snack supply",
	"man":    "beaver enthusiast",
	"woman":  "beaver biologist",
}

var mildKeywords = map[string]string{
	"love":  "respect for beaver society",
	"river": "beaver highway",
	"tree":  "snack supply",
	"man":   "beaver enthusiast",
	"woman": "beaver biologist",
}

var maximumExtras = map[string]string{
	"house":  "lodge",
	"home":   "lodge",
	"work":   "gnaw shift",
	"water":  "pond",
	"heart":  "flat leathery tail",
	"money":  "premium birch bark",
	"dream":  "dam blueprint",
	"forest": "all-you-can-eat buffet",
}

var idioms = []string{
	"Busy as a beaver, as always.",
	"Dam, that was beautiful.",
	"When life gives you trees, build a dam.",
	"Gnaw your way to the top.",
	"Leave it to beaver.",
	"Every log has its place.",
}

var facts = []string{
	"Beavers have transparent eyelids so they can see underwater.",
	"A beaver’s teeth never stop growing.",
	"Beaver dams can be seen from space.",
	"The largest beaver dam is over 850 meters long.",
}

// Keywords returns a copy of the keyword map used for mode.
func Keywords(mode Mode) map[string]string {
	out := make(map[string]string)
	switch mode {
	case ModeMild:
		for k, v := range mildKeywords {
			out[k] = v
		}
	case ModeMaximum:
		for k, v := range classicKeywords {
			out[k] = v
		}
		for k, v := range maximumExtras {
			out[k] = v
		}
	default:
		for k, v := range classicKeywords {
			out[k] = v
		}
	}
	return out
}

func idiomCount(mode Mode) int {
	switch mode {
	case ModeMild:
		return 1
	case ModeMaximum:
		return 3
	default:
		return 2
	}
}

// Beaverifier applies keyword substitution and appends idioms and a fact.
// It is safe for concurrent use.
type Beaverifier struct {
	mu        sync.Mutex
	rng       *rand.Rand
	replacers map[Mode]*strings.Replacer
}

// New creates a Beaverifier whose random choices are driven by seed.
func New(seed int64) *Beaverifier {
	b := &Beaverifier{
		rng:       rand.New(rand.NewSource(seed)),
		replacers: make(map[Mode]*strings.Replacer, len(Modes)),
	}
	for _, m := range Modes {
		b.replacers[m] = newReplacer(Keywords(m))
	}
	return b
}

// Substitute performs only the keyword replacement step.
func (b *Beaverifier) Substitute(text string, mode Mode) string {
	r, ok := b.replacers[mode]
	if !ok {
		r = b.replacers[ModeClassic]
	}
	return r.Replace(text)
}

// Beaverify rewrites text for mode and appends idiom lines plus a bonus fact.
func (b *Beaverifier) Beaverify(text string, mode Mode) string {
	var sb strings.Builder
	sb.WriteString(b.Substitute(text, mode))

	b.mu.Lock()
	perm := b.rng.Perm(len(idioms))
	fact := facts[b.rng.Intn(len(facts))]
	b.mu.Unlock()

	n := idiomCount(mode)
	if n > 0 {
		sb.WriteString("\n")
		for _, i := range perm[:n] {
			sb.WriteString("\n")
			sb.WriteString(idioms[i])
		}
	}
	sb.WriteString("\n\nBonus Beaver Fact: ")
	sb.WriteString(fact)
	return sb.String()
}

// newReplacer builds a replacer that matches the longest key first at any
// position. strings.Replacer tries old strings in argument order, so the
// pairs are ordered by descending key length.
func newReplacer(keywords map[string]string) *strings.Replacer {
	type pair struct{ from, to string }
	pairs := make([]pair, 0, len(keywords)*2)
	for k, v := range keywords {
		pairs = append(pairs, pair{k, v})
		if c := capitalize(k); c != k {
			pairs = append(pairs, pair{c, capitalize(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if len(pairs[i].from) != len(pairs[j].from) {
			return len(pairs[i].from) > len(pairs[j].from)
		}
		return pairs[i].from < pairs[j].from
	})

	args := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		args = append(args, p.from, p.to)
	}
	return strings.NewReplacer(args...)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
