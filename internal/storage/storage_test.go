package storage

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

// implementations returns each DB under test with a cleanup.
func implementations(t *testing.T) map[string]DB {
	t.Helper()
	badger, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	t.Cleanup(func() { badger.Close() })
	return map[string]DB{
		"memory": NewMemory(),
		"badger": badger,
	}
}

func TestPutGetDelete(t *testing.T) {
	for name, db := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			key := []byte("key1")
			value := []byte("value1")

			if err := db.Put(key, value); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := db.Get(key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !bytes.Equal(got, value) {
				t.Errorf("Get = %q, want %q", got, value)
			}

			has, err := db.Has(key)
			if err != nil || !has {
				t.Errorf("Has = %v, %v, want true, nil", has, err)
			}

			if err := db.Delete(key); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := db.Get(key); !errors.Is(err, ErrKeyNotFound) {
				t.Errorf("Get after delete = %v, want ErrKeyNotFound", err)
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	for name, db := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
				t.Errorf("Get missing = %v, want ErrKeyNotFound", err)
			}
			has, err := db.Has([]byte("missing"))
			if err != nil || has {
				t.Errorf("Has missing = %v, %v, want false, nil", has, err)
			}
		})
	}
}

func TestForEach_PrefixAndOrder(t *testing.T) {
	for name, db := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			keys := []string{"a/3", "a/1", "b/1", "a/2"}
			for _, k := range keys {
				if err := db.Put([]byte(k), []byte("v-"+k)); err != nil {
					t.Fatalf("Put %s: %v", k, err)
				}
			}

			var seen []string
			err := db.ForEach([]byte("a/"), func(key, value []byte) error {
				seen = append(seen, string(key))
				if want := "v-" + string(key); string(value) != want {
					t.Errorf("value for %s = %q, want %q", key, value, want)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("ForEach: %v", err)
			}

			want := []string{"a/1", "a/2", "a/3"}
			if len(seen) != len(want) {
				t.Fatalf("seen %v, want %v", seen, want)
			}
			for i := range want {
				if seen[i] != want[i] {
					t.Errorf("seen[%d] = %s, want %s (ascending order)", i, seen[i], want[i])
				}
			}
		})
	}
}

func TestForEach_EarlyStop(t *testing.T) {
	stop := errors.New("stop")
	for name, db := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				db.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v"))
			}
			count := 0
			err := db.ForEach([]byte("k"), func(key, value []byte) error {
				count++
				if count == 2 {
					return stop
				}
				return nil
			})
			if !errors.Is(err, stop) {
				t.Errorf("ForEach err = %v, want stop sentinel", err)
			}
			if count != 2 {
				t.Errorf("callback ran %d times, want 2", count)
			}
		})
	}
}

func TestBatch_Atomic(t *testing.T) {
	for name, db := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			batcher, ok := db.(Batcher)
			if !ok {
				t.Fatalf("%T does not implement Batcher", db)
			}
			db.Put([]byte("old"), []byte("1"))

			batch := batcher.NewBatch()
			batch.Put([]byte("new1"), []byte("a"))
			batch.Put([]byte("new2"), []byte("b"))
			batch.Delete([]byte("old"))

			// Nothing visible before commit.
			if _, err := db.Get([]byte("new1")); !errors.Is(err, ErrKeyNotFound) {
				t.Error("batch write visible before commit")
			}
			if has, _ := db.Has([]byte("old")); !has {
				t.Error("batch delete visible before commit")
			}

			if err := batch.Commit(); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			if v, err := db.Get([]byte("new1")); err != nil || string(v) != "a" {
				t.Errorf("new1 after commit = %q, %v", v, err)
			}
			if has, _ := db.Has([]byte("old")); has {
				t.Error("old key survived batch delete")
			}
		})
	}
}

func TestBatch_PutThenDeleteSameKey(t *testing.T) {
	for name, db := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			batcher := db.(Batcher)
			batch := batcher.NewBatch()
			batch.Put([]byte("k"), []byte("v"))
			batch.Delete([]byte("k"))
			if err := batch.Commit(); err != nil {
				t.Fatalf("Commit: %v", err)
			}
			if has, _ := db.Has([]byte("k")); has {
				t.Error("delete after put in same batch should win")
			}
		})
	}
}

func TestPrefixDB_Isolation(t *testing.T) {
	inner := NewMemory()
	a := NewPrefixDB(inner, []byte("a/"))
	b := NewPrefixDB(inner, []byte("b/"))

	a.Put([]byte("k"), []byte("from-a"))
	b.Put([]byte("k"), []byte("from-b"))

	got, err := a.Get([]byte("k"))
	if err != nil || string(got) != "from-a" {
		t.Errorf("a.Get = %q, %v", got, err)
	}
	got, _ = b.Get([]byte("k"))
	if string(got) != "from-b" {
		t.Errorf("b.Get = %q", got)
	}

	// ForEach sees only own namespace, with the prefix stripped.
	var keys []string
	a.ForEach(nil, func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if len(keys) != 1 || keys[0] != "k" {
		t.Errorf("a keys = %v, want [k]", keys)
	}
}

func TestPrefixDB_DeleteAll(t *testing.T) {
	inner := NewMemory()
	a := NewPrefixDB(inner, []byte("a/"))
	inner.Put([]byte("outside"), []byte("x"))
	a.Put([]byte("k1"), []byte("1"))
	a.Put([]byte("k2"), []byte("2"))

	if err := a.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if has, _ := a.Has([]byte("k1")); has {
		t.Error("k1 survived DeleteAll")
	}
	if has, _ := inner.Has([]byte("outside")); !has {
		t.Error("DeleteAll escaped its namespace")
	}
}

func TestPrefixDB_Batch(t *testing.T) {
	inner := NewMemory()
	p := NewPrefixDB(inner, []byte("p/"))

	batch := p.NewBatch()
	batch.Put([]byte("k"), []byte("v"))
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if v, err := inner.Get([]byte("p/k")); err != nil || string(v) != "v" {
		t.Errorf("inner.Get(p/k) = %q, %v", v, err)
	}
}

func TestPrefixDB_NewBatchRequiresBatcher(t *testing.T) {
	// Embedding strips the Batcher implementation from the inner DB.
	type plainDB struct{ DB }
	p := NewPrefixDB(plainDB{NewMemory()}, []byte("p/"))

	batch := p.NewBatch()
	if err := batch.Put([]byte("k"), []byte("v")); !errors.Is(err, ErrNoBatchSupport) {
		t.Errorf("Put = %v, want ErrNoBatchSupport", err)
	}
	if err := batch.Delete([]byte("k")); !errors.Is(err, ErrNoBatchSupport) {
		t.Errorf("Delete = %v, want ErrNoBatchSupport", err)
	}
	if err := batch.Commit(); !errors.Is(err, ErrNoBatchSupport) {
		t.Errorf("Commit = %v, want ErrNoBatchSupport", err)
	}

	// Nothing may have reached the inner DB.
	if has, _ := p.Has([]byte("k")); has {
		t.Error("refused batch wrote through")
	}
}

func TestBadger_Persistence(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	db.Put([]byte("persist"), []byte("yes"))
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	got, err := db2.Get([]byte("persist"))
	if err != nil || string(got) != "yes" {
		t.Errorf("after reopen: %q, %v", got, err)
	}
}
