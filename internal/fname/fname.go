// Package fname contains filename constants and common on-disk layout
// for the PACSAT ground-station store.
/*
 * Copyright (c) 2018-2022, NVIDIA CORPORATION. All rights reserved.
 */
package fname

const (
	// store root layout
	IndexDB  = "metadata.db" // buntdb file, join(store root, IndexDB)
	TrashDir = ".trash"      // join(store root, TrashDir)

	// daemon config
	GlobalConfig = ".pacsatd.conf"

	// per-file artifact suffix
	BinExt = ".bin"
	TmpExt = ".tmp"

	// trash sidecar suffix: carries the Record JSON a trashed artifact's own
	// PFH can't fully reconstruct (callsign, download count, forwarding list)
	MetaExt = ".meta.json"
)

