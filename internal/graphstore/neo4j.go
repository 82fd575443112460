package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	// DefaultPathLimit caps how many traversal paths one expansion collects.
	// Exceeding it truncates the subgraph rather than erroring.
	DefaultPathLimit = 50

	// maxHopDistance bounds traversal depth regardless of what the caller
	// asks for; the hop count is interpolated into the Cypher pattern.
	maxHopDistance = 3
)

// Neo4jStore implements GraphStore on Neo4j. The driver handle is
// constructed explicitly and injected, with Close releasing it; no
// package-level singleton.
type Neo4jStore struct {
	driver    neo4j.DriverWithContext
	pathLimit int
}

// Neo4jOption is a functional option for configuring Neo4jStore.
type Neo4jOption func(*Neo4jStore)

// WithPathLimit overrides the traversal path cap.
func WithPathLimit(limit int) Neo4jOption {
	return func(s *Neo4jStore) {
		if limit > 0 {
			s.pathLimit = limit
		}
	}
}

// NewNeo4jStore connects to Neo4j and verifies connectivity.
func NewNeo4jStore(ctx context.Context, uri, username, password string, opts ...Neo4jOption) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	s := &Neo4jStore{driver: driver, pathLimit: DefaultPathLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// ExpandContext traverses outward from the seed records up to hop hops in
// either direction. The owning-user node is excluded from every path so the
// user supernode cannot dominate the subgraph. Nodes are deduplicated by
// element identity; edges are collected per traversed path.
func (s *Neo4jStore) ExpandContext(ctx context.Context, userID string, recordIDs []string, hop int) (*Subgraph, error) {
	if len(recordIDs) == 0 {
		return &Subgraph{}, nil
	}
	if hop < 1 {
		hop = 1
	}
	if hop > maxHopDistance {
		hop = maxHopDistance
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	// Path length cannot be parameterized in Cypher; hop is clamped above.
	query := fmt.Sprintf(`
		MATCH (r:Record)
		WHERE r.userId = $userId AND r.recordId IN $recordIds
		MATCH p = (r)-[*1..%d]-(n)
		WHERE none(x IN nodes(p) WHERE x:User)
		RETURN p
		LIMIT $pathLimit
	`, hop)

	params := map[string]any{
		"userId":    userID,
		"recordIds": recordIDs,
		"pathLimit": s.pathLimit,
	}

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		sub := &Subgraph{}
		seen := make(map[string]struct{})

		for res.Next(ctx) {
			value, ok := res.Record().Get("p")
			if !ok {
				continue
			}
			path, ok := value.(neo4j.Path)
			if !ok {
				continue
			}

			for _, node := range path.Nodes {
				if _, dup := seen[node.GetElementId()]; dup {
					continue
				}
				seen[node.GetElementId()] = struct{}{}
				sub.Nodes = append(sub.Nodes, Node{
					ElementID: node.GetElementId(),
					Labels:    node.Labels,
					Props:     node.Props,
				})
			}

			for _, rel := range path.Relationships {
				sub.Edges = append(sub.Edges, Edge{
					SourceID: rel.StartElementId,
					TargetID: rel.EndElementId,
					Type:     rel.Type,
					Props:    rel.Props,
				})
			}
		}
		return sub, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expand graph context: %w", err)
	}

	return result.(*Subgraph), nil
}

// UpsertRecordGraph writes the record node, anchors it to the owning user,
// and merges the extracted entities. Person and Emotion nodes are merged per
// user so repeated mentions accumulate connections; events and outcomes are
// created per record.
func (s *Neo4jStore) UpsertRecordGraph(ctx context.Context, userID string, graph *RecordGraph) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MERGE (u:User {userId: $userId})
			MERGE (r:Record {recordId: $recordId})
			SET r.userId = $userId, r.date = $date
			MERGE (u)-[:HAS_RECORD]->(r)
		`, map[string]any{
			"userId":   userID,
			"recordId": graph.RecordID,
			"date":     graph.Date,
		})
		if err != nil {
			return nil, err
		}

		for _, emotion := range graph.Emotions {
			_, err := tx.Run(ctx, `
				MATCH (r:Record {recordId: $recordId})
				MERGE (em:Emotion {name: $name, userId: $userId})
				MERGE (r)-[:FELT]->(em)
			`, map[string]any{
				"recordId": graph.RecordID,
				"userId":   userID,
				"name":     emotion,
			})
			if err != nil {
				return nil, err
			}
		}

		for _, event := range graph.Events {
			res, err := tx.Run(ctx, `
				MATCH (r:Record {recordId: $recordId})
				CREATE (e:Event {summary: $summary, userId: $userId})
				MERGE (r)-[:HAS_EVENT]->(e)
				RETURN elementId(e) AS id
			`, map[string]any{
				"recordId": graph.RecordID,
				"userId":   userID,
				"summary":  event.Summary,
			})
			if err != nil {
				return nil, err
			}
			rec, err := res.Single(ctx)
			if err != nil {
				return nil, err
			}
			eventID, _ := rec.Get("id")

			attach := func(query string, names []string) error {
				for _, name := range names {
					_, err := tx.Run(ctx, query, map[string]any{
						"eventId": eventID,
						"userId":  userID,
						"name":    name,
					})
					if err != nil {
						return err
					}
				}
				return nil
			}

			if err := attach(`
				MATCH (e:Event) WHERE elementId(e) = $eventId
				MERGE (p:Person {name: $name, userId: $userId})
				MERGE (e)-[:INVOLVES]->(p)
			`, event.People); err != nil {
				return nil, err
			}
			if err := attach(`
				MATCH (e:Event) WHERE elementId(e) = $eventId
				MERGE (a:Action {name: $name, userId: $userId})
				MERGE (e)-[:TOOK_ACTION]->(a)
			`, event.Actions); err != nil {
				return nil, err
			}
			if err := attach(`
				MATCH (e:Event) WHERE elementId(e) = $eventId
				CREATE (o:Outcome {summary: $name, userId: $userId})
				MERGE (e)-[:RESULTED_IN]->(o)
			`, event.Outcomes); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert record graph: %w", err)
	}
	return nil
}

// DeleteRecordGraph detaches and removes a record's node, leaving shared
// Person/Emotion nodes in place.
func (s *Neo4jStore) DeleteRecordGraph(ctx context.Context, userID, recordID string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MATCH (r:Record {recordId: $recordId, userId: $userId})
			OPTIONAL MATCH (r)-[:HAS_EVENT]->(e:Event)
			OPTIONAL MATCH (e)-[:RESULTED_IN]->(o:Outcome)
			DETACH DELETE o, e, r
		`, map[string]any{
			"recordId": recordID,
			"userId":   userID,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to delete record graph: %w", err)
	}
	return nil
}

// Ensure Neo4jStore implements GraphStore.
var _ GraphStore = (*Neo4jStore)(nil)
