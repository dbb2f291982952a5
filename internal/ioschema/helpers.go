package ioschema

import "github.com/gnames/gmlas/pkg/schema"

// tableNames returns names of all metadata tables.
func tableNames() []string {
	gens := schema.AllGenerators()
	res := make([]string, len(gens))
	for i, v := range gens {
		res[i] = v.TableName()
	}
	return res
}
