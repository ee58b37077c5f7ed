package schema

import (
	"testing"
)

const exampleHCL = `
document "root" {
  document "hello" {
    scalar "world" {}
    scalar "new york" {}
  }
  collection "fruits" {
    document {
      scalar "color" {}
    }
  }
}
`

func TestParseHCL(t *testing.T) {
	root, err := ParseHCL([]byte(exampleHCL), "test.pathschema.hcl")
	if err != nil {
		t.Fatalf("ParseHCL returned error: %v", err)
	}

	node, err := root.Resolve([]string{"hello", "world"})
	if err != nil {
		t.Fatalf("Resolve(hello.world) returned error: %v", err)
	}
	if node.Kind() != KindScalar {
		t.Errorf("hello.world kind = %v, want KindScalar", node.Kind())
	}

	node, err = root.Resolve([]string{"fruits", "apple", "color"})
	if err != nil {
		t.Fatalf("Resolve(fruits.apple.color) returned error: %v", err)
	}
	if node.Kind() != KindScalar {
		t.Errorf("fruits.apple.color kind = %v, want KindScalar", node.Kind())
	}
}

func TestParseHCLMissingRoot(t *testing.T) {
	_, err := ParseHCL([]byte(`collection "x" { document {} }`), "test.pathschema.hcl")
	if err == nil {
		t.Error("expected error for a schema with no top-level document block")
	}
}

func TestDumpRoundTrip(t *testing.T) {
	root, err := ParseHCL([]byte(exampleHCL), "test.pathschema.hcl")
	if err != nil {
		t.Fatalf("ParseHCL returned error: %v", err)
	}

	dumped := Dump(root)
	reparsed, err := ParseHCL(dumped, "dumped.pathschema.hcl")
	if err != nil {
		t.Fatalf("ParseHCL(Dump(root)) returned error: %v\n%s", err, dumped)
	}

	node, err := reparsed.Resolve([]string{"fruits", "apple", "color"})
	if err != nil {
		t.Fatalf("Resolve on round-tripped schema returned error: %v", err)
	}
	if node.Kind() != KindScalar {
		t.Errorf("kind = %v, want KindScalar", node.Kind())
	}
}
