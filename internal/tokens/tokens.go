// Package tokens estimates how many model tokens a transcript occupies.
package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"

	"github.com/linanwx/chatball/chat"
	"github.com/linanwx/chatball/logger"
)

// perTurnOverhead approximates the role and separator tokens chat models add
// around every message.
const perTurnOverhead = 4

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func loadCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		enc, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			logger.Warn("token codec unavailable, using estimate", "err", err)
			return
		}
		codec = enc
	})
	return codec
}

// Text returns the token count of s.
func Text(s string) int {
	if s == "" {
		return 0
	}
	if enc := loadCodec(); enc != nil {
		ids, _, err := enc.Encode(s)
		if err == nil {
			return len(ids)
		}
		logger.Debug("token encode failed, using estimate", "err", err)
	}
	return estimate(s)
}

// Count returns the approximate token count of turns, including per-message
// overhead.
func Count(turns []chat.Turn) int {
	total := 0
	for _, t := range turns {
		total += perTurnOverhead + Text(t.Content)
	}
	return total
}

// Counter counts a transcript that changes a little between calls. Turns
// already encoded are reused while their role and content stay the same.
// The zero value is ready to use.
type Counter struct {
	turns  []counted
	encode func(string) int
}

type counted struct {
	role    chat.Role
	content string
	n       int
}

// Count returns the token count of turns like the package Count. When live
// is set the trailing turn is still growing, so it is estimated from its
// length and left out of the cache.
func (c *Counter) Count(turns []chat.Turn, live bool) int {
	encode := c.encode
	if encode == nil {
		encode = Text
	}

	total := 0
	next := make([]counted, 0, len(turns))
	for i, t := range turns {
		if live && i == len(turns)-1 {
			total += perTurnOverhead + estimate(t.Content)
			break
		}
		var e counted
		if i < len(c.turns) && c.turns[i].role == t.Role && c.turns[i].content == t.Content {
			e = c.turns[i]
		} else {
			e = counted{role: t.Role, content: t.Content, n: perTurnOverhead + encode(t.Content)}
		}
		next = append(next, e)
		total += e.n
	}
	c.turns = next
	return total
}

// estimate is the rune-count fallback: about four characters per token.
func estimate(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + 3) / 4
}
