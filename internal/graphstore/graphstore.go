// Package graphstore provides the knowledge-graph capability: expanding the
// neighborhood around seed records at question time, and upserting the
// entities extracted from a record at ingestion time.
package graphstore

import "context"

// Node is a subgraph node keyed by the graph-native element identifier, not
// a memory-record identifier.
type Node struct {
	ElementID string
	Labels    []string
	Props     map[string]any
}

// Edge is one relationship instance between two nodes. Edges are not
// deduplicated within a subgraph: multiple relationship instances may
// connect the same pair and the multiplicity is meaningful.
type Edge struct {
	SourceID string
	TargetID string
	Type     string
	Props    map[string]any
}

// Subgraph is the bounded neighborhood collected around a set of seed
// records. Nodes are deduplicated by element identity.
type Subgraph struct {
	Nodes []Node
	Edges []Edge
}

// RecordGraph is the entity structure extracted from one record, following
// the fixed schema Record→Event, Record→Emotion, Event→Person, Event→Action,
// Event→Outcome.
type RecordGraph struct {
	RecordID string
	Date     string
	Events   []EventGraph
	Emotions []string
}

// EventGraph is one event within a record together with its participants.
type EventGraph struct {
	Summary  string
	People   []string
	Actions  []string
	Outcomes []string
}

// GraphStore defines the graph traversal and upsert capability.
type GraphStore interface {
	// ExpandContext collects the subgraph reachable from the seed records
	// within hop relationship hops in either direction, scoped to userID and
	// excluding the owning-user node itself. An empty seed set yields an
	// empty subgraph without touching the store.
	ExpandContext(ctx context.Context, userID string, recordIDs []string, hop int) (*Subgraph, error)

	// UpsertRecordGraph writes a record's extracted entities and their
	// relationships, anchored to the owning user.
	UpsertRecordGraph(ctx context.Context, userID string, graph *RecordGraph) error

	// DeleteRecordGraph detaches and removes a record's node.
	DeleteRecordGraph(ctx context.Context, userID, recordID string) error

	// Close releases the underlying driver.
	Close(ctx context.Context) error
}
