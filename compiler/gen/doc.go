// Package gen turns entity declarations into generated code for storm.
//
// # Architecture
//
// The generation pipeline follows this flow:
//
//	Declarations (compiler/load: YAML, JSON, structs, snapshots)
//	        ↓
//	   NewGraph: read, resolve relations, map types
//	        ↓
//	   Graph (immutable, fingerprinted)
//	        ↓
//	   Emit: identifier planning, then every Renderer
//	        ↓
//	   ArtifactWriter (staged, all-or-nothing)
//
// # Key Types
//
//   - Graph: Holds all resolved Types, their relations and cycle groups
//   - Type: An entity with fields, primary key and relations
//   - Field: A field with its host type and resolved StorageType
//   - Relation: A relationship (O2O, M2O, O2M, M2M) with its foreign key
//   - TypeMapper: Resolves storage types by precedence
//   - Config: Global configuration for code generation
//
// # Error Handling
//
// Every problem of a run is collected into a *Report, so one pass surfaces
// all of them. Use errors.As to reach individual problems:
//
//	g, err := gen.NewGraph(cfg, schemas)
//	if r, ok := gen.AsReport(err); ok {
//		for _, p := range r.Problems {
//			fmt.Println(p.Location(), p)
//		}
//	}
//
// The problem types are SchemaError, UnmappedTypeError,
// DanglingReferenceError and NameCollisionError. Numeric range loss the
// declarations do not mark as lossy is reported as a Warning.
package gen
