package checkout

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	defaultOrderPrefix = "ND"
	orderSuffixLen     = 4
	base36Alphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NumberGenerator produces human-readable order numbers.
type NumberGenerator struct {
	prefix string
	random io.Reader
}

// NewNumberGenerator returns a generator that reads randomness from crypto/rand.
func NewNumberGenerator(prefix string) *NumberGenerator {
	return newNumberGenerator(prefix, rand.Reader)
}

func newNumberGenerator(prefix string, random io.Reader) *NumberGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = defaultOrderPrefix
	}
	return &NumberGenerator{prefix: prefix, random: random}
}

// Next formats PREFIX-<base36 unix millis>-<4 random base36 chars>.
func (g *NumberGenerator) Next(now time.Time) (string, error) {
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	max := big.NewInt(int64(len(base36Alphabet)))
	suffix := make([]byte, orderSuffixLen)
	for i := range suffix {
		n, err := rand.Int(g.random, max)
		if err != nil {
			return "", fmt.Errorf("order number entropy: %w", err)
		}
		suffix[i] = base36Alphabet[n.Int64()]
	}
	return g.prefix + "-" + stamp + "-" + string(suffix), nil
}
