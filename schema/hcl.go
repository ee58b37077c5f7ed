package schema

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

// ParseHCL compiles a schema declaration written in the store's HCL DSL
// into a schema tree. The grammar declares the tree shape directly:
//
//	document "root" {
//	  document "hello" {
//	    scalar "world" {}
//	    scalar "new york" {}
//	  }
//	  collection "fruits" {
//	    document {
//	      scalar "color" {}
//	    }
//	  }
//	}
//
// The outer "root" block is the schema root (its own name is cosmetic
// and ignored); everything nested inside it becomes the document/
// collection/scalar tree described in §3 of the data model.
func ParseHCL(src []byte, filename string) (*Node, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse schema hcl: %s", diags.Error())
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("parse schema hcl: unexpected body type")
	}

	var root *hclsyntax.Block
	for _, block := range body.Blocks {
		if block.Type == "document" {
			root = block
			break
		}
	}
	if root == nil {
		return nil, fmt.Errorf("parse schema hcl: no top-level \"document\" block")
	}

	return compileBlock(root)
}

func compileBlock(block *hclsyntax.Block) (*Node, error) {
	switch block.Type {
	case "scalar":
		return Scalar(), nil
	case "document":
		fields := make(map[string]*Node)
		for _, child := range block.Body.Blocks {
			name, err := blockName(child)
			if err != nil {
				return nil, err
			}
			node, err := compileBlock(child)
			if err != nil {
				return nil, err
			}
			fields[name] = node
		}
		return Document(fields), nil
	case "collection":
		if len(block.Body.Blocks) != 1 {
			return nil, fmt.Errorf("parse schema hcl: collection %q must declare exactly one inner node", blockLabel(block))
		}
		inner, err := compileBlock(block.Body.Blocks[0])
		if err != nil {
			return nil, err
		}
		return Collection(inner), nil
	default:
		return nil, fmt.Errorf("parse schema hcl: unknown block type %q", block.Type)
	}
}

// blockName returns a field's declared name. A document/collection/scalar
// block nested inside a document must carry exactly one label: its field
// name within that document.
func blockName(block *hclsyntax.Block) (string, error) {
	if len(block.Labels) != 1 {
		return "", fmt.Errorf("parse schema hcl: %s block inside a document must have exactly one label (its field name)", block.Type)
	}
	return block.Labels[0], nil
}

// blockLabel returns a block's first label, or "" if it has none (inner
// nodes of a collection are unlabeled — membership keys are client-chosen
// at runtime, not declared in the schema).
func blockLabel(block *hclsyntax.Block) string {
	if len(block.Labels) == 0 {
		return ""
	}
	return block.Labels[0]
}

// Dump renders a schema tree back into the HCL DSL accepted by ParseHCL,
// using hclwrite to produce canonically formatted output.
func Dump(root *Node) []byte {
	f := hclwrite.NewEmptyFile()
	rootBlock := f.Body().AppendNewBlock("document", []string{"root"})
	writeNode(rootBlock.Body(), root)
	return f.Bytes()
}

func writeNode(body *hclwrite.Body, n *Node) {
	switch n.Kind() {
	case KindDocument:
		names := n.Fields()
		sort.Strings(names)
		for _, name := range names {
			child, _ := n.Field(name)
			block := body.AppendNewBlock(child.Kind().String(), []string{name})
			writeNode(block.Body(), child)
		}
	case KindCollection:
		block := body.AppendNewBlock(n.Inner().Kind().String(), nil)
		writeNode(block.Body(), n.Inner())
	case KindScalar:
		// Terminal: no further children.
	}
}
