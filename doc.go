// Package osmloc provides a node-location index for OSM processing
// pipelines: a key-value store from 64-bit node ids to fixed-precision
// coordinates, populated while streaming nodes and queried while resolving
// way and relation geometries.
//
// Several physical backends with different memory/capacity/persistence
// tradeoffs sit behind the one Store contract and are selected by name at
// runtime:
//
//	st, err := osmloc.Create("flex_mem")
//	st, err := osmloc.Create("mapped_dense,/tmp/nodes.idx")
//
// The usual flow is a two-phase pass: Set for every node, Sort once (a
// no-op for direct-indexed backends), then Get while assembling
// geometries, and Close when the pass is done:
//
//	st, _ := osmloc.Create("sparse_mem")
//	defer st.Close()
//	for node := range nodes {
//		_ = st.Set(node.ID, node.Location)
//	}
//	_ = st.Sort()
//	for way := range ways {
//		for _, ref := range way.NodeRefs {
//			loc, err := st.Get(ref)
//			// errors.Is(err, osmloc.ErrNotFound) for missing nodes
//			_ = loc
//		}
//	}
//
// The snapshot subpackage serializes any store into a portable compressed
// format, and the blobstore subpackages publish and fetch such snapshots
// through local disk, S3 or MinIO.
package osmloc
