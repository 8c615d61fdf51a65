package vfs

import "github.com/hashicorp/go-memdb"

const table = "mount"

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		table: {
			Name: table,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Path"},
				},
				"uri": {
					Name:    "uri",
					Indexer: &memdb.StringFieldIndex{Field: "URI"},
				},
			},
		},
	},
}

// Mount is an entry in a Directory's mount table.
type Mount struct {
	Path string // relative to the directory root, always absolute
	URI  string
}
