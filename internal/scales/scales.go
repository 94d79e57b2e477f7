// internal/scales/scales.go
//
// Scale suggestion deck for the boss.
//
// Responsibilities:
//   - Load the deck of left|right pairs once, from SCALES_FILE when set or from the
//     embedded default list otherwise.
//   - Hand out a cryptographically random pair for GET /api/scales/random.
//
// File format: one "left|right" pair per line. Blank lines and lines starting with
// '#' are skipped, as are lines that do not split into two non-empty labels or
// whose labels exceed game.MaxScaleLabelLen.
//
// Suggestions are advisory; a boss may submit any scale.

package scales

import (
	"bufio"
	"crypto/rand"
	_ "embed"
	"errors"
	"io"
	"math/big"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/robalobadob/wavelength/internal/game"
)

//go:embed default_scales.txt
var embeddedDeck string

// Deck is an immutable list of scale pairs.
type Deck struct {
	pairs []game.Scale
}

var (
	initOnce   sync.Once
	loaded     *Deck
	initialErr error
)

// Init loads the package deck exactly once. path may be empty, in which case the
// embedded deck is used.
func Init(path string) error {
	initOnce.Do(func() {
		if path == "" {
			loaded, initialErr = Parse(strings.NewReader(embeddedDeck))
			return
		}
		loaded, initialErr = LoadFile(path)
	})
	return initialErr
}

// Default returns the deck loaded by Init, loading the embedded one if Init was
// never called.
func Default() (*Deck, error) {
	if err := Init(""); err != nil {
		return nil, err
	}
	return loaded, nil
}

// LoadFile reads a deck from disk.
func LoadFile(path string) (*Deck, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads left|right lines from r. An empty deck is an error.
func Parse(r io.Reader) (*Deck, error) {
	var pairs []game.Scale
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if s, ok := parseLine(sc.Text()); ok {
			pairs = append(pairs, s)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, errors.New("scales: deck is empty")
	}
	return &Deck{pairs: pairs}, nil
}

func parseLine(line string) (game.Scale, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return game.Scale{}, false
	}
	left, right, ok := strings.Cut(line, "|")
	if !ok {
		return game.Scale{}, false
	}
	left, right = strings.TrimSpace(left), strings.TrimSpace(right)
	if left == "" || right == "" {
		return game.Scale{}, false
	}
	if utf8.RuneCountInString(left) > game.MaxScaleLabelLen || utf8.RuneCountInString(right) > game.MaxScaleLabelLen {
		return game.Scale{}, false
	}
	return game.Scale{Left: left, Right: right}, true
}

// Random returns a uniformly random pair.
func (d *Deck) Random() (game.Scale, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(d.pairs))))
	if err != nil {
		return game.Scale{}, err
	}
	return d.pairs[n.Int64()], nil
}

// Len reports the number of pairs.
func (d *Deck) Len() int { return len(d.pairs) }
