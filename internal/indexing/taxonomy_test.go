package indexing

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sha1n/relic-history/internal/domain"
)

func openTaxonomyReader(t *testing.T, dir string) *TaxonomyReader {
	t.Helper()
	r, err := OpenTaxonomyReader(dir)
	if err != nil {
		t.Fatalf("OpenTaxonomyReader failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestTaxonomyWriter_FreshHasRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tax")

	w, err := OpenTaxonomyWriter(dir, ModeCreate)
	if err != nil {
		t.Fatalf("OpenTaxonomyWriter failed: %v", err)
	}
	if w.Size() != 1 {
		t.Errorf("Expected size 1, got %d", w.Size())
	}

	r := openTaxonomyReader(t, dir)
	size, err := r.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 1 {
		t.Errorf("Expected persisted size 1, got %d", size)
	}
	ord, ok, _ := r.Ordinal(nil)
	if !ok || ord != RootOrdinal {
		t.Errorf("Expected root ordinal 0, got %d (exists=%v)", ord, ok)
	}
}

func TestTaxonomyWriter_RegistersAncestors(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tax")
	w, err := OpenTaxonomyWriter(dir, ModeCreate)
	if err != nil {
		t.Fatal(err)
	}

	ord := w.AddCategory(domain.CategoryPath{"test", "stuff"})
	if ord != 2 {
		t.Errorf("Expected ordinal 2, got %d", ord)
	}
	if w.Size() != 3 {
		t.Errorf("Expected size 3, got %d", w.Size())
	}

	if again := w.AddCategory(domain.CategoryPath{"test", "stuff"}); again != ord {
		t.Errorf("Expected existing ordinal %d, got %d", ord, again)
	}
	if w.Pending() != 2 {
		t.Errorf("Expected 2 pending categories, got %d", w.Pending())
	}

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if w.Pending() != 0 {
		t.Errorf("Expected nothing pending after commit, got %d", w.Pending())
	}

	r := openTaxonomyReader(t, dir)
	size, _ := r.Size()
	if size != 3 {
		t.Errorf("Expected persisted size 3, got %d", size)
	}
	if _, ok, _ := r.Ordinal(domain.CategoryPath{"test"}); !ok {
		t.Error("Expected ancestor to be registered")
	}
}

func TestTaxonomyWriter_AppendKeepsOrdinals(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tax")

	w1, _ := OpenTaxonomyWriter(dir, ModeCreate)
	first := w1.AddCategory(domain.CategoryPath{"Author", "foo"})
	if err := w1.Commit(); err != nil {
		t.Fatal(err)
	}

	w2, err := OpenTaxonomyWriter(dir, ModeAppendOnly)
	if err != nil {
		t.Fatalf("Append open failed: %v", err)
	}
	if got := w2.AddCategory(domain.CategoryPath{"Author", "foo"}); got != first {
		t.Errorf("Expected ordinal %d to survive reopen, got %d", first, got)
	}
	if got := w2.AddCategory(domain.CategoryPath{"Author", "bar"}); got != 3 {
		t.Errorf("Expected next ordinal 3, got %d", got)
	}
	if err := w2.Commit(); err != nil {
		t.Fatal(err)
	}

	r := openTaxonomyReader(t, dir)
	children, err := r.Children(domain.CategoryPath{"Author"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(children, []string{"foo", "bar"}) {
		t.Errorf("Expected [foo bar] in ordinal order, got %v", children)
	}

	categories, _ := r.Categories()
	if len(categories) != 3 {
		t.Errorf("Expected 3 non-root categories, got %v", categories)
	}
}

func TestTaxonomyWriter_CreateWipes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tax")

	w1, _ := OpenTaxonomyWriter(dir, ModeCreate)
	w1.AddCategory(domain.CategoryPath{"Author", "foo"})
	_ = w1.Commit()

	w2, err := OpenTaxonomyWriter(dir, ModeCreate)
	if err != nil {
		t.Fatal(err)
	}
	if w2.Size() != 1 {
		t.Errorf("Expected wiped taxonomy of size 1, got %d", w2.Size())
	}
}

func TestTaxonomyWriter_AppendOnlyMissing(t *testing.T) {
	_, err := OpenTaxonomyWriter(filepath.Join(t.TempDir(), "missing"), ModeAppendOnly)
	if !errors.Is(err, domain.ErrStorage) {
		t.Errorf("Expected ErrStorage, got %v", err)
	}
}

func TestTaxonomyReader_Missing(t *testing.T) {
	_, err := OpenTaxonomyReader(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, domain.ErrStorage) {
		t.Errorf("Expected ErrStorage, got %v", err)
	}
}

func TestTaxonomyReader_UnknownPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tax")
	if _, err := OpenTaxonomyWriter(dir, ModeCreate); err != nil {
		t.Fatal(err)
	}

	r := openTaxonomyReader(t, dir)
	if _, ok, err := r.Ordinal(domain.CategoryPath{"Author"}); ok || err != nil {
		t.Errorf("Expected unknown path to be absent without error, got ok=%v err=%v", ok, err)
	}
	children, err := r.Children(domain.CategoryPath{"Author"})
	if err != nil || len(children) != 0 {
		t.Errorf("Expected no children, got %v (err=%v)", children, err)
	}
}
