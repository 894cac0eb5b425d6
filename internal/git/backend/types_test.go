package backend

import "testing"

func TestRefLocalBranchAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref  Ref
		want bool
	}{
		{ref: Ref{Hash: "abc", Kind: RefKindBranch, Name: "main"}, want: true},
		{ref: Ref{Hash: "def", Kind: RefKindBranch, Name: "main"}, want: false},
		{ref: Ref{Hash: "abc", Kind: RefKindRemoteBranch, Name: "origin/main"}, want: false},
		{ref: Ref{Hash: "abc", Kind: RefKindTag, Name: "v1"}, want: false},
	}
	for _, tt := range tests {
		if got := tt.ref.LocalBranchAt("abc"); got != tt.want {
			t.Fatalf("%s %s: LocalBranchAt() = %v, want %v", tt.ref.Kind, tt.ref.Name, got, tt.want)
		}
	}
	if got := RefKind(9).String(); got != "RefKind(9)" {
		t.Fatalf("String() = %q", got)
	}
}
