package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gossip-lsp/lexis/protocol"
)

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = (%v, %v), want miss", ok, err)
	}

	key := SnapshotKey("github.com/acme/log", "v1.2.3")
	if err := c.Set(ctx, key, []byte("first")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(ctx, key, []byte("second")); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v)", ok, err)
	}
	if !bytes.Equal(got, []byte("second")) {
		t.Errorf("Get = %q, want %q", got, "second")
	}

	if err := c.Set(ctx, "", nil); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Set(\"\") err = %v, want ErrEmptyKey", err)
	}
}

func TestFileCache(t *testing.T) {
	c, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exerciseCache(t, c)
}

func TestSQLiteCache(t *testing.T) {
	c, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	exerciseCache(t, c)
}

// memoryCaller answers xcache requests from a map, encoding values the way
// they travel over JSON-RPC.
type memoryCaller struct {
	store map[string][]byte
}

func (m *memoryCaller) Call(ctx context.Context, method string, params, result interface{}) error {
	switch method {
	case protocol.MethodXCacheGet:
		p := params.(protocol.CacheGetParams)
		data, err := json.Marshal(m.store[p.Key])
		if err != nil {
			return err
		}
		return json.Unmarshal(data, result)
	case protocol.MethodXCacheSet:
		p := params.(protocol.CacheSetParams)
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		var decoded protocol.CacheSetParams
		if err := json.Unmarshal(data, &decoded); err != nil {
			return err
		}
		m.store[decoded.Key] = decoded.Value
		return nil
	}
	return errors.New("unexpected method " + method)
}

func TestClientCache(t *testing.T) {
	exerciseCache(t, NewClient(&memoryCaller{store: make(map[string][]byte)}))
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	if err := c.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(context.Background(), "k"); ok {
		t.Error("Nop cache returned a value")
	}
}
