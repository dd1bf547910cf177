package event

import (
	"strconv"

	"github.com/nostr-git/ngit-core/pkg/errs"
)

func itoa(i int) string      { return strconv.Itoa(i) }
func itoa64(i int64) string  { return strconv.FormatInt(i, 10) }
func atoi(s string) int      { n, _ := strconv.Atoi(s); return n }
func atoi64(s string) int64  { n, _ := strconv.ParseInt(s, 10, 64); return n }

func requireTag(name string) error {
	return errs.New(errs.InvalidInput, "missing required tag "+name).With("operation", "build").With("tag", name)
}
