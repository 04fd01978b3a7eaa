package graph

import "errors"

// ErrNotFound is returned when a lookup by natural key or ID matches no node.
var ErrNotFound = errors.New("graph: node not found")

// ErrEmptyBatch is returned by ApplyBatch when given no nodes and no edges.
var ErrEmptyBatch = errors.New("graph: empty batch")
