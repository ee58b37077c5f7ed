package permission

import (
	"testing"

	"github.com/agentic-research/pathstore/internal/session"
)

const exampleRules = `
rule {
  ops    = ["Read"]
  prefix = ["public"]
  allow  = true
}

rule {
  ops    = ["Read", "Insert", "Update", "Remove"]
  allow  = false
}
`

func TestCompileAllowsMatchingPrefix(t *testing.T) {
	perm, err := Compile([]byte(exampleRules), "test.rules.hcl")
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}

	if !perm(session.OpRead, []string{"public", "notice"}) {
		t.Error("expected Read under public/ to be allowed")
	}
}

func TestCompileFallsThroughToDeny(t *testing.T) {
	perm, err := Compile([]byte(exampleRules), "test.rules.hcl")
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}

	if perm(session.OpRead, []string{"private", "secret"}) {
		t.Error("expected Read outside public/ to be denied")
	}
	if perm(session.OpInsert, []string{"public", "notice"}) {
		t.Error("expected Insert (not in the public rule's ops) to be denied")
	}
}

func TestCompileNoRulesDeniesEverything(t *testing.T) {
	perm, err := Compile([]byte(``), "empty.rules.hcl")
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if perm(session.OpRead, []string{"anything"}) {
		t.Error("expected no rules to deny by default")
	}
}
