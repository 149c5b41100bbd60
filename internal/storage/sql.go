package storage

import (
	_ "embed"
)

const (
	insertNamespaceSQL = `
INSERT OR IGNORE INTO namespaces (name, created_at)
VALUES (?, ?)`

	selectNamespaceSQL = `
SELECT 
    count(*) 
FROM namespaces 
WHERE 
    name = ?`

	insertTableSQL = `
INSERT INTO tables (namespace,
                    name,
                    schema,
                    created_at)
VALUES (?, ?, ?, ?)`

	selectTableSQL = `
SELECT 
    id, 
    namespace, 
    name, 
    schema, 
    created_at 
FROM tables 
WHERE 
    namespace = ? 
  AND name = ?`

	selectNextSequenceSQL = `
SELECT 
    coalesce(max(sequence), 0) + 1 
FROM snapshots 
WHERE 
    table_id = ?`

	insertSnapshotSQL = `
INSERT INTO snapshots (id,
                       table_id,
                       sequence,
                       num_rows,
                       committed_at)
VALUES (?, ?, ?, ?, ?)`

	selectSnapshotsSQL = `
SELECT 
    id, 
    sequence, 
    num_rows, 
    committed_at 
FROM snapshots 
WHERE 
    table_id = ? 
ORDER BY sequence`

	insertFramesSQL = `
INSERT INTO frames (table_id,
                    snapshot_id,
                    row_index,
                    device_id,
                    ts,
                    rssi,
                    snr,
                    phy,
                    frame_type,
                    payload,
                    quality_metric_1,
                    quality_metric_2,
                    quality_metric_3)
VALUES `

	frameValuesPlaceholder = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	frameValuesPerRow      = 13

	selectFramesSQL = `
SELECT 
    f.device_id, 
    f.ts, 
    f.rssi, 
    f.snr, 
    f.phy, 
    f.frame_type, 
    f.payload, 
    f.quality_metric_1, 
    f.quality_metric_2, 
    f.quality_metric_3 
FROM frames f 
    JOIN snapshots s ON s.id = f.snapshot_id 
WHERE 
    f.table_id = ?`

	orderFramesSQL = `
ORDER BY s.sequence, f.row_index`
)

var (
	//go:embed schema.sql
	initSchemaSQL string

	//go:embed indexes.sql
	initIndexesSQL string
)
