package backend

import "fmt"

type RefKind uint8

const (
	RefKindBranch RefKind = iota
	RefKindRemoteBranch
	RefKindTag
)

func (k RefKind) String() string {
	switch k {
	case RefKindBranch:
		return "branch"
	case RefKindRemoteBranch:
		return "remote"
	case RefKindTag:
		return "tag"
	default:
		return fmt.Sprintf("RefKind(%d)", uint8(k))
	}
}

// Ref is a ref resolved to the commit it points at. Annotated tags are
// peeled.
type Ref struct {
	Hash string
	Kind RefKind
	// Name is the short name: main, origin/main, v1.
	Name string
}

// LocalBranchAt reports whether r is a local branch pointing at hash.
func (r Ref) LocalBranchAt(hash string) bool {
	return r.Kind == RefKindBranch && r.Hash == hash
}
