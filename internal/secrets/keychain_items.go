package secrets

// Keychain searches return opaque CoreFoundation objects whose concrete type
// is only known at runtime. The walk over them is kept free of cgo so that
// the classification and reference-count rules can be tested anywhere.

// itemKind is the runtime class of one keychain search result
type itemKind int

const (
	kindOther itemKind = iota
	kindDictionary
	kindDataBlob
	kindItemReference
	kindCertificate
	kindKey
	kindIdentity
)

func (k itemKind) String() string {
	switch k {
	case kindDictionary:
		return "dictionary"
	case kindDataBlob:
		return "data"
	case kindItemReference:
		return "keychain-item"
	case kindCertificate:
		return "certificate"
	case kindKey:
		return "key"
	case kindIdentity:
		return "identity"
	default:
		return "other"
	}
}

// carriesAccount reports whether results of this kind expose an account
// attribute. Everything else is skipped, not treated as an error.
func (k itemKind) carriesAccount() bool {
	return k == kindDictionary || k == kindItemReference
}

// typeTable holds the runtime's type identifiers
type typeTable struct {
	array       uintptr
	dictionary  uintptr
	data        uintptr
	item        uintptr
	certificate uintptr
	key         uintptr
	identity    uintptr
}

func (t typeTable) classify(id uintptr) itemKind {
	switch id {
	case t.dictionary:
		return kindDictionary
	case t.data:
		return kindDataBlob
	case t.item:
		return kindItemReference
	case t.certificate:
		return kindCertificate
	case t.key:
		return kindKey
	case t.identity:
		return kindIdentity
	default:
		return kindOther
	}
}

type cfRef uintptr

// ownership says whether holding a reference obliges a release
type ownership int

const (
	// owned references were returned under the create rule
	owned ownership = iota
	// borrowed references were obtained under the get rule and are only
	// valid while their container is
	borrowed
)

type foreignRef struct {
	ref  cfRef
	mode ownership
}

// cfRuntime is the part of CoreFoundation the search walk needs
type cfRuntime interface {
	types() typeTable
	typeID(ref cfRef) uintptr
	retain(ref cfRef)
	release(ref cfRef)
	arrayLen(ref cfRef) int
	// arrayAt returns a borrowed element
	arrayAt(ref cfRef, i int) cfRef
	account(kind itemKind, ref cfRef) (string, bool)
}

// adopt turns a borrowed reference into an owned one. The retain is the
// only way a borrowed reference may outlive its source.
func adopt(rt cfRuntime, r foreignRef) foreignRef {
	if r.mode == borrowed {
		rt.retain(r.ref)
		return foreignRef{ref: r.ref, mode: owned}
	}
	return r
}

// searchAccounts extracts account names from a match-all search result.
// result was returned under the create rule and is released here.
func searchAccounts(rt cfRuntime, result cfRef) []string {
	if result == 0 {
		return nil
	}
	tt := rt.types()

	if rt.typeID(result) == tt.array {
		defer rt.release(result)
		n := rt.arrayLen(result)
		accounts := make([]string, 0, n)
		for i := 0; i < n; i++ {
			// Elements belong to the array and die with it.
			elem := foreignRef{ref: rt.arrayAt(result, i), mode: borrowed}
			if account, ok := accountOf(rt, tt, elem); ok {
				accounts = append(accounts, account)
			}
		}
		return accounts
	}

	single := adopt(rt, foreignRef{ref: result, mode: borrowed})
	rt.release(result)
	defer rt.release(single.ref)

	if account, ok := accountOf(rt, tt, single); ok {
		return []string{account}
	}
	return []string{}
}

func accountOf(rt cfRuntime, tt typeTable, r foreignRef) (string, bool) {
	kind := tt.classify(rt.typeID(r.ref))
	if !kind.carriesAccount() {
		log().Debug("skipping keychain result without account", "kind", kind)
		return "", false
	}
	return rt.account(kind, r.ref)
}

// collectFound reads the secret of every account. Accounts whose secret
// cannot be read are skipped so one bad item does not hide the rest.
func collectFound(kind BackendKind, accounts []string, read func(account string) ([]byte, error)) []Found {
	found := make([]Found, 0, len(accounts))
	for _, account := range accounts {
		secret, err := read(account)
		if err != nil {
			log().Debug("skipping unreadable item", "backend", kind, "account", account, "error", err)
			continue
		}
		found = append(found, Found{Account: account, Secret: secret})
	}
	return found
}
