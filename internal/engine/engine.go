// Package engine implements the schema-validated store operations: get,
// insert, update, and remove, each executing inside a single atomic
// transaction against the underlying key-value store.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentic-research/pathstore/internal/kvstore"
	"github.com/agentic-research/pathstore/internal/pathcodec"
	"github.com/agentic-research/pathstore/schema"
)

// presenceByte is the sentinel value recorded at a Document's physical
// key once it has been explicitly initialized.
var presenceByte = []byte{0x01}

// Engine dispatches get/insert/update/remove against a KV store under a
// fixed schema. It is safe for concurrent use; the KV itself guarantees
// transaction isolation.
type Engine struct {
	kv   kvstore.KV
	root *schema.Node
}

// New returns an Engine serving root over kv. root is fixed for the
// Engine's lifetime.
func New(kv kvstore.KV, root *schema.Node) *Engine {
	return &Engine{kv: kv, root: root}
}

// Value is the logical value at a path, shaped per the resolved schema
// node: a string for a Scalar, nil for an absent or uninitialized
// Document, map[string]Value for a present Document or a Collection.
type Value any

// childPath returns a fresh path with name appended, never aliasing the
// caller's backing array.
func childPath(path []string, name string) []string {
	return append(append([]string{}, path...), name)
}

func (e *Engine) resolve(path []string) (*schema.Node, error) {
	node, err := e.root.Resolve(path)
	if err != nil {
		return nil, mapSchemaErr(err)
	}
	return node, nil
}

func mapSchemaErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, schema.ErrUnknownField):
		return fmt.Errorf("%w: %v", ErrUnknownField, err)
	case errors.Is(err, schema.ErrIllegalRefOnScalar):
		return fmt.Errorf("%w: %v", ErrIllegalRefOnScalar, err)
	default:
		return err
	}
}

// Get reads the value at path.
func (e *Engine) Get(ctx context.Context, path []string) (Value, error) {
	node, err := e.resolve(path)
	if err != nil {
		return nil, err
	}

	var result Value
	err = e.kv.View(ctx, func(tx kvstore.Tx) error {
		v, err := e.get(tx, path, node)
		result = v
		return err
	})
	return result, err
}

func (e *Engine) get(tx kvstore.Tx, path []string, node *schema.Node) (Value, error) {
	key := pathcodec.Encode(path)

	switch node.Kind() {
	case schema.KindScalar:
		raw, ok, err := tx.Get(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		if !ok {
			return nil, ErrKeyNotFound
		}
		return string(raw), nil

	case schema.KindDocument:
		_, ok, err := tx.Get(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		if !ok {
			return nil, nil
		}
		record := make(map[string]Value, len(node.Fields()))
		for _, name := range node.Fields() {
			child, _ := node.Field(name)
			v, err := e.get(tx, childPath(path, name), child)
			if err != nil {
				if err == ErrKeyNotFound {
					// An absent scalar field in a present document is
					// tolerated for forward compatibility.
					continue
				}
				return nil, err
			}
			record[name] = v
		}
		return record, nil

	case schema.KindCollection:
		raw, ok, err := tx.Get(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		if !ok {
			return map[string]Value{}, nil
		}
		members, err := decodeMembers(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptKey, err)
		}
		record := make(map[string]Value, len(members))
		for name := range members {
			v, err := e.get(tx, childPath(path, name), node.Inner())
			if err != nil {
				return nil, err
			}
			record[name] = v
		}
		return record, nil
	}
	return nil, fmt.Errorf("unreachable schema kind %v", node.Kind())
}

// Insert writes value at path. path must resolve to a Document or
// Collection; a Scalar target is rejected with ErrNonDocumentInsert.
func (e *Engine) Insert(ctx context.Context, path []string, value any) error {
	node, err := e.resolve(path)
	if err != nil {
		return err
	}
	if node.Kind() == schema.KindScalar {
		return ErrNonDocumentInsert
	}

	return e.kv.Update(ctx, func(tx kvstore.Tx) error {
		return e.insert(tx, path, node, value)
	})
}

func (e *Engine) insert(tx kvstore.Tx, path []string, node *schema.Node, value any) error {
	key := pathcodec.Encode(path)

	switch node.Kind() {
	case schema.KindScalar:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: scalar value must be a string", ErrSchemaMismatch)
		}
		if err := tx.Put(key, []byte(s)); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}

	case schema.KindDocument:
		record, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: document value must be a record", ErrSchemaMismatch)
		}
		if err := checkFieldSet(node, record); err != nil {
			return err
		}
		if err := tx.Put(key, presenceByte); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		for _, name := range node.Fields() {
			child, _ := node.Field(name)
			cp := childPath(path, name)
			if err := e.insert(tx, cp, child, record[name]); err != nil {
				return err
			}
		}

	case schema.KindCollection:
		record, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: collection value must be a record", ErrSchemaMismatch)
		}
		for name, childValue := range record {
			cp := childPath(path, name)
			if err := e.insert(tx, cp, node.Inner(), childValue); err != nil {
				return err
			}
		}
	}

	if err := e.bumpParentIndex(tx, path, true); err != nil {
		return err
	}
	return nil
}

// checkFieldSet validates that record's keys exactly match node's
// declared field set: ExtraKeyFound on a superset, SchemaMismatch on a
// subset.
func checkFieldSet(node *schema.Node, record map[string]any) error {
	declared := make(map[string]struct{}, len(node.Fields()))
	for _, name := range node.Fields() {
		declared[name] = struct{}{}
	}
	for name := range record {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("%w: %q", ErrExtraKeyFound, name)
		}
	}
	for name := range declared {
		if _, ok := record[name]; !ok {
			return fmt.Errorf("%w: missing field %q", ErrSchemaMismatch, name)
		}
	}
	return nil
}

// bumpParentIndex merges path's last component into (present=true) or
// removes it from (present=false) the membership set at its parent, if
// the parent resolves to a Collection. It is a no-op if path is the root
// or the parent is not a Collection.
func (e *Engine) bumpParentIndex(tx kvstore.Tx, path []string, present bool) error {
	if len(path) == 0 {
		return nil
	}
	parentPath := path[:len(path)-1]
	name := path[len(path)-1]

	parentNode, err := e.root.Resolve(parentPath)
	if err != nil || parentNode.Kind() != schema.KindCollection {
		return nil
	}

	parentKey := pathcodec.Encode(parentPath)
	raw, ok, err := tx.Get(parentKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	var members map[string]struct{}
	if ok {
		members, err = decodeMembers(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptKey, err)
		}
	} else {
		members = make(map[string]struct{})
	}

	ords := newCollectionOrdinals(members)
	var changed bool
	if present {
		changed = ords.add(name)
	} else {
		changed = ords.remove(name)
	}
	if !changed && ok {
		return nil
	}

	return writeMembers(tx, parentKey, ords.names())
}

func writeMembers(tx kvstore.Tx, key []byte, members map[string]struct{}) error {
	if err := tx.Put(key, encodeMembers(members)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// Update partially updates the value at path. The physical key at path
// must already be present, else ErrKeyNotFound.
func (e *Engine) Update(ctx context.Context, path []string, value any) error {
	node, err := e.resolve(path)
	if err != nil {
		return err
	}

	return e.kv.Update(ctx, func(tx kvstore.Tx) error {
		return e.update(tx, path, node, value)
	})
}

func (e *Engine) update(tx kvstore.Tx, path []string, node *schema.Node, value any) error {
	key := pathcodec.Encode(path)

	switch node.Kind() {
	case schema.KindScalar:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: scalar value must be a string", ErrSchemaMismatch)
		}
		_, existed, err := tx.Get(key)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		if !existed {
			return ErrKeyNotFound
		}
		if err := tx.Put(key, []byte(s)); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}

	case schema.KindDocument:
		_, existed, err := tx.Get(key)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		if !existed {
			return ErrKeyNotFound
		}
		record, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: document value must be a record", ErrSchemaMismatch)
		}
		declared := make(map[string]struct{}, len(node.Fields()))
		for _, name := range node.Fields() {
			declared[name] = struct{}{}
		}
		for name := range record {
			if _, ok := declared[name]; !ok {
				return fmt.Errorf("%w: %q", ErrExtraKeyFound, name)
			}
		}
		// Re-affirm the presence marker (the original source clears and
		// re-checks it for diagnostic reasons; we simply rewrite it).
		if err := tx.Put(key, presenceByte); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		for name, childValue := range record {
			child, _ := node.Field(name)
			cp := childPath(path, name)
			if err := e.insertOrUpdateField(tx, cp, child, childValue); err != nil {
				return err
			}
		}

	case schema.KindCollection:
		raw, ok, err := tx.Get(key)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		if !ok {
			return ErrKeyNotFound
		}
		members, err := decodeMembers(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptKey, err)
		}
		record, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: collection value must be a record", ErrSchemaMismatch)
		}
		for name := range record {
			if _, exists := members[name]; !exists {
				return ErrKeyNotFound
			}
		}
		for name, childValue := range record {
			cp := childPath(path, name)
			if err := e.update(tx, cp, node.Inner(), childValue); err != nil {
				return err
			}
		}
	}
	return nil
}

// insertOrUpdateField applies a Document update's per-field value:
// update is partial, but a field the record mentions is written through
// as a fresh value (insert semantics) if it was never initialized, or
// updated in place otherwise — either way it ends up holding childValue.
func (e *Engine) insertOrUpdateField(tx kvstore.Tx, path []string, node *schema.Node, value any) error {
	key := pathcodec.Encode(path)
	_, existed, err := tx.Get(key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if existed {
		return e.update(tx, path, node, value)
	}
	if err := e.insert(tx, path, node, value); err != nil {
		return err
	}
	return nil
}

// Remove deletes the value at path.
func (e *Engine) Remove(ctx context.Context, path []string) error {
	node, err := e.resolve(path)
	if err != nil {
		return err
	}

	return e.kv.Update(ctx, func(tx kvstore.Tx) error {
		if err := e.remove(tx, path, node); err != nil {
			return err
		}
		return e.bumpParentIndex(tx, path, false)
	})
}

func (e *Engine) remove(tx kvstore.Tx, path []string, node *schema.Node) error {
	key := pathcodec.Encode(path)

	switch node.Kind() {
	case schema.KindScalar:
		if err := tx.Delete(key); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}

	case schema.KindDocument:
		if err := tx.Delete(key); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		for _, name := range node.Fields() {
			child, _ := node.Field(name)
			cp := childPath(path, name)
			if err := e.remove(tx, cp, child); err != nil {
				return err
			}
		}

	case schema.KindCollection:
		raw, ok, err := tx.Get(key)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		if !ok {
			return ErrKeyNotFound
		}
		members, err := decodeMembers(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptKey, err)
		}
		for name := range members {
			cp := childPath(path, name)
			if err := e.remove(tx, cp, node.Inner()); err != nil {
				return err
			}
		}
		if err := tx.Delete(key); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
	}
	return nil
}

