package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
)

// Document is a decoded snapshot together with its server timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// Encoder converts an entity into the value written to Firestore.
type Encoder[T any] func(value T) (any, error)

// Decoder hydrates an entity from a snapshot.
type Decoder[T any] func(snap *firestore.DocumentSnapshot) (T, error)

// QueryBuilder narrows a collection query before it runs.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection wraps typed access to a single Firestore collection.
type Collection[T any] struct {
	provider *Provider
	name     string
	encode   Encoder[T]
	decode   Decoder[T]
}

// NewCollection binds typed helpers to the named collection. Nil codecs fall
// back to Firestore's struct tag based encoding.
func NewCollection[T any](provider *Provider, name string, encode Encoder[T], decode Decoder[T]) *Collection[T] {
	if encode == nil {
		encode = func(value T) (any, error) { return value, nil }
	}
	if decode == nil {
		decode = func(snap *firestore.DocumentSnapshot) (T, error) {
			var target T
			err := snap.DataTo(&target)
			return target, err
		}
	}
	return &Collection[T]{provider: provider, name: strings.TrimSpace(name), encode: encode, decode: decode}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Create writes a new document and fails with a conflict if it already exists.
func (c *Collection[T]) Create(ctx context.Context, id string, value T) (time.Time, error) {
	doc, payload, err := c.prepare(ctx, id, value)
	if err != nil {
		return time.Time{}, err
	}
	res, err := doc.Create(ctx, payload)
	if err != nil {
		return time.Time{}, WrapError(c.op("create"), err)
	}
	return res.UpdateTime, nil
}

// Set replaces the document, creating it when missing.
func (c *Collection[T]) Set(ctx context.Context, id string, value T) (time.Time, error) {
	doc, payload, err := c.prepare(ctx, id, value)
	if err != nil {
		return time.Time{}, err
	}
	res, err := doc.Set(ctx, payload)
	if err != nil {
		return time.Time{}, WrapError(c.op("set"), err)
	}
	return res.UpdateTime, nil
}

// Replace overwrites an existing document; a missing document is reported as not found.
func (c *Collection[T]) Replace(ctx context.Context, id string, value T) (time.Time, error) {
	doc, payload, err := c.prepare(ctx, id, value)
	if err != nil {
		return time.Time{}, err
	}
	err = c.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(doc); err != nil {
			return err
		}
		return tx.Set(doc, payload)
	})
	if err != nil {
		return time.Time{}, WrapError(c.op("replace"), err)
	}
	return time.Now().UTC(), nil
}

// Delete removes the document; a missing document is reported as not found.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	doc, err := c.documentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Delete(ctx, firestore.Exists); err != nil {
		return WrapError(c.op("delete"), err)
	}
	return nil
}

// Get fetches and decodes a single document.
func (c *Collection[T]) Get(ctx context.Context, id string) (Document[T], error) {
	doc, err := c.documentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(c.op("get"), err)
	}
	return c.decodeSnapshot(snap)
}

// Query runs a collection query and decodes every returned document.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	coll, err := c.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []Document[T]
	for {
		snap, err := iter.Next()
		if isIteratorDone(err) {
			break
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		decoded, err := c.decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, decoded)
	}
	return docs, nil
}

// DocumentRef exposes the raw reference for transactional callers.
func (c *Collection[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	return c.documentRef(ctx, id)
}

// Encode runs the collection's encoder, for callers writing inside a transaction.
func (c *Collection[T]) Encode(value T) (any, error) {
	payload, err := c.encode(value)
	if err != nil {
		return nil, fmt.Errorf("%s: encode: %w", c.op("encode"), err)
	}
	return payload, nil
}

func (c *Collection[T]) prepare(ctx context.Context, id string, value T) (*firestore.DocumentRef, any, error) {
	doc, err := c.documentRef(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	payload, err := c.Encode(value)
	if err != nil {
		return nil, nil, err
	}
	return doc, payload, nil
}

func (c *Collection[T]) decodeSnapshot(snap *firestore.DocumentSnapshot) (Document[T], error) {
	entity, err := c.decode(snap)
	if err != nil {
		return Document[T]{}, fmt.Errorf("%s: decode %s: %w", c.name, snap.Ref.ID, err)
	}
	return Document[T]{
		ID:         snap.Ref.ID,
		Data:       entity,
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
	}, nil
}

func (c *Collection[T]) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	if c.name == "" {
		return nil, errors.New("firestore: collection name is required")
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}

func (c *Collection[T]) documentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("firestore: document id is required")
	}
	coll, err := c.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (c *Collection[T]) op(action string) string {
	if c == nil || c.name == "" {
		return "firestore." + action
	}
	return c.name + "." + action
}
