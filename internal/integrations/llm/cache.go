package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"commentreview/internal/logger"
)

// ResponseStore persists raw model replies by key.
type ResponseStore interface {
	GetResponse(ctx context.Context, key string) (string, bool, error)
	PutResponse(ctx context.Context, key, reply string) error
}

// CachingCompleter memoizes successful replies so duplicate comments cost
// one model call. Store failures are logged and bypassed.
type CachingCompleter struct {
	Next      Completer
	Store     ResponseStore
	Namespace string // provider and model, part of every key
	Log       *logger.Logger
}

func (c *CachingCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	key := CacheKey(c.Namespace, system, user)
	if reply, ok, err := c.Store.GetResponse(ctx, key); err != nil {
		c.log().Warn("response cache read failed", "error", err)
	} else if ok {
		return reply, nil
	}

	reply, err := c.Next.Complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	if err := c.Store.PutResponse(ctx, key, reply); err != nil {
		c.log().Warn("response cache write failed", "error", err)
	}
	return reply, nil
}

func (c *CachingCompleter) log() *logger.Logger {
	if c.Log == nil {
		return logger.Nop()
	}
	return c.Log
}

// CacheKey hashes the namespace and both prompt parts. Parts are length
// prefixed so no two inputs share a key.
func CacheKey(namespace, system, user string) string {
	h := sha256.New()
	for _, part := range []string{namespace, system, user} {
		fmt.Fprintf(h, "%d:", len(part))
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
