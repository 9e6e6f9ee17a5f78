package secrets

import (
	"errors"
	"testing"
)

// fakeCF is an in-memory CoreFoundation with reference counting
type fakeCF struct {
	table    typeTable
	objects  map[cfRef]*fakeObject
	next     cfRef
	released []cfRef
}

type fakeObject struct {
	typeID  uintptr
	refs    int
	elems   []cfRef
	account string
	hasAcct bool
}

func newFakeCF() *fakeCF {
	return &fakeCF{
		table: typeTable{
			array: 1, dictionary: 2, data: 3, item: 4,
			certificate: 5, key: 6, identity: 7,
		},
		objects: make(map[cfRef]*fakeObject),
		next:    100,
	}
}

func (f *fakeCF) add(typeID uintptr, account string) cfRef {
	f.next++
	f.objects[f.next] = &fakeObject{typeID: typeID, refs: 1, account: account, hasAcct: account != ""}
	return f.next
}

func (f *fakeCF) addArray(elems ...cfRef) cfRef {
	f.next++
	f.objects[f.next] = &fakeObject{typeID: f.table.array, refs: 1, elems: elems}
	return f.next
}

func (f *fakeCF) types() typeTable { return f.table }

func (f *fakeCF) typeID(ref cfRef) uintptr { return f.objects[ref].typeID }

func (f *fakeCF) retain(ref cfRef) { f.objects[ref].refs++ }

func (f *fakeCF) release(ref cfRef) {
	f.objects[ref].refs--
	f.released = append(f.released, ref)
}

func (f *fakeCF) arrayLen(ref cfRef) int { return len(f.objects[ref].elems) }

func (f *fakeCF) arrayAt(ref cfRef, i int) cfRef { return f.objects[ref].elems[i] }

func (f *fakeCF) account(kind itemKind, ref cfRef) (string, bool) {
	o := f.objects[ref]
	return o.account, o.hasAcct
}

func (f *fakeCF) refs(ref cfRef) int { return f.objects[ref].refs }

func TestSearchAccounts_Array(t *testing.T) {
	cf := newFakeCF()
	a := cf.add(cf.table.dictionary, "alice")
	b := cf.add(cf.table.item, "bob")
	cert := cf.add(cf.table.certificate, "")
	noAcct := cf.add(cf.table.dictionary, "")
	arr := cf.addArray(a, cert, b, noAcct)

	accounts := searchAccounts(cf, arr)

	if len(accounts) != 2 || accounts[0] != "alice" || accounts[1] != "bob" {
		t.Errorf("Expected [alice bob], got %v", accounts)
	}
	if cf.refs(arr) != 0 {
		t.Errorf("Expected array released once, refcount %d", cf.refs(arr))
	}
	// elements are borrowed from the array and must not be touched
	for _, elem := range []cfRef{a, b, cert, noAcct} {
		if cf.refs(elem) != 1 {
			t.Errorf("Element %d refcount changed to %d", elem, cf.refs(elem))
		}
	}
}

func TestSearchAccounts_Single(t *testing.T) {
	cf := newFakeCF()
	item := cf.add(cf.table.dictionary, "carol")

	accounts := searchAccounts(cf, item)

	if len(accounts) != 1 || accounts[0] != "carol" {
		t.Errorf("Expected [carol], got %v", accounts)
	}
	if cf.refs(item) != 0 {
		t.Errorf("Expected balanced retain/release, refcount %d", cf.refs(item))
	}
	if len(cf.released) != 2 {
		t.Errorf("Expected the result and its adopted reference to be released, got %v", cf.released)
	}
}

func TestSearchAccounts_SingleWithoutAccount(t *testing.T) {
	cf := newFakeCF()
	key := cf.add(cf.table.key, "")

	accounts := searchAccounts(cf, key)
	if accounts == nil || len(accounts) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", accounts)
	}
	if cf.refs(key) != 0 {
		t.Errorf("Expected refcount 0, got %d", cf.refs(key))
	}
}

func TestSearchAccounts_NilResult(t *testing.T) {
	if got := searchAccounts(newFakeCF(), 0); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
}

func TestAdopt(t *testing.T) {
	cf := newFakeCF()
	ref := cf.add(cf.table.data, "")

	kept := adopt(cf, foreignRef{ref: ref, mode: owned})
	if cf.refs(ref) != 1 || kept.mode != owned {
		t.Errorf("Adopting an owned ref must not retain, refcount %d", cf.refs(ref))
	}

	adopted := adopt(cf, foreignRef{ref: ref, mode: borrowed})
	if cf.refs(ref) != 2 {
		t.Errorf("Adopting a borrowed ref must retain, refcount %d", cf.refs(ref))
	}
	if adopted.mode != owned {
		t.Error("Adopted ref should be owned")
	}
}

func TestTypeTable_Classify(t *testing.T) {
	tt := newFakeCF().table
	tests := []struct {
		id      uintptr
		kind    itemKind
		account bool
	}{
		{tt.dictionary, kindDictionary, true},
		{tt.item, kindItemReference, true},
		{tt.data, kindDataBlob, false},
		{tt.certificate, kindCertificate, false},
		{tt.key, kindKey, false},
		{tt.identity, kindIdentity, false},
		{999, kindOther, false},
	}
	for _, test := range tests {
		kind := tt.classify(test.id)
		if kind != test.kind {
			t.Errorf("classify(%d) = %s, want %s", test.id, kind, test.kind)
		}
		if kind.carriesAccount() != test.account {
			t.Errorf("%s.carriesAccount() = %v", kind, kind.carriesAccount())
		}
	}
}

func TestCollectFound_SkipsUnreadable(t *testing.T) {
	read := func(account string) ([]byte, error) {
		if account == "locked" {
			return nil, errors.New("interaction not allowed")
		}
		return []byte("pw-" + account), nil
	}

	found := collectFound(BackendKeychain, []string{"a", "locked", "b"}, read)
	if len(found) != 2 {
		t.Fatalf("Expected 2 results, got %+v", found)
	}
	if found[0].Account != "a" || string(found[1].Secret) != "pw-b" {
		t.Errorf("Unexpected results: %+v", found)
	}
}
