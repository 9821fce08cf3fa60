package service

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/db"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// codeAttempts bounds the uniqueness retry loop. With 62^2 suffixes per day
// a posyandu-sized population exhausts this only under pathological load.
const codeAttempts = 5

// codeGenerator produces external patient codes: prefix, registration date
// and a two-character base62 suffix, e.g. PSY20250812Ab.
type codeGenerator struct {
	store  db.ElderlyStore
	prefix string
	now    func() time.Time
	randN  func(n int) int
}

func newCodeGenerator(store db.ElderlyStore, prefix string) *codeGenerator {
	return &codeGenerator{
		store:  store,
		prefix: prefix,
		now:    time.Now,
		randN:  rand.Intn,
	}
}

// generate returns a code unused by any locally known record. Uniqueness is
// checked against the local store only; a concurrent registration elsewhere
// surfaces as a duplicate on sync.
func (g *codeGenerator) generate() (string, error) {
	day := g.now().UTC().Format("20060102")
	for attempt := 0; attempt < codeAttempts; attempt++ {
		suffix := string([]byte{
			base62Alphabet[g.randN(len(base62Alphabet))],
			base62Alphabet[g.randN(len(base62Alphabet))],
		})
		code := g.prefix + day + suffix

		existing, err := g.store.GetByCode(code)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", apperrors.New(apperrors.ErrCodeExhausted,
		fmt.Sprintf("no unused code after %d attempts for %s%s", codeAttempts, g.prefix, day))
}
