package graphql

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/mnohosten/laura-db/pkg/index"
	"github.com/mnohosten/laura-db/pkg/metrics"
)

// Schema builds the GraphQL schema exposing read/write access to a single
// uint64-keyed hash index and its live metrics (SPEC_FULL.md §11).
func Schema(table *index.HashTable[uint64, uint64], collector *metrics.MetricsCollector) (graphql.Schema, error) {
	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "IndexStats",
		Description: "Live buffer pool and hash index counters",
		Fields: graphql.Fields{
			"globalDepth":      &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"pageFetches":      &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"bufferPoolHits":   &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"bufferPoolMisses": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"bucketSplits":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"bucketMerges":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"directoryGrowths": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"directoryShrinks": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	resolver := NewResolver(table, collector)

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Query",
		Description: "Root query type for the hash index",
		Fields: graphql.Fields{
			"lookup": &graphql.Field{
				Type:        graphql.NewList(graphql.NewNonNull(graphql.Int)),
				Description: "Return every value stored under key",
				Args: graphql.FieldConfigArgument{
					"key": &graphql.ArgumentConfig{
						Type:        graphql.NewNonNull(graphql.Int),
						Description: "Lookup key",
					},
				},
				Resolve: resolver.Lookup,
			},
			"stats": &graphql.Field{
				Type:        statsType,
				Description: "Snapshot of buffer pool and hash index counters",
				Resolve:     resolver.Stats,
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Mutation",
		Description: "Root mutation type for the hash index",
		Fields: graphql.Fields{
			"insert": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Boolean),
				Description: "Insert (key, value); false if the pair already exists",
				Args: graphql.FieldConfigArgument{
					"key":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"value": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: resolver.Insert,
			},
			"remove": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Boolean),
				Description: "Remove (key, value); false if no such pair exists",
				Args: graphql.FieldConfigArgument{
					"key":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"value": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: resolver.Remove,
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to create GraphQL schema: %w", err)
	}

	return schema, nil
}
