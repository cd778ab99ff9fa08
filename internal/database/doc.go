// Package database archives crawl runs in a local SQLite file.
//
// Every run is stored with its summary columns, the pages it analyzed, the
// sensitive paths it found and the geo records it collected, together with
// the complete report as JSON. The archive is write-once per run: it backs
// the history command and is never read to resume a crawl.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. The archive is a single file under the user's data directory
// 2. The driver is pure Go, so the binary stays CGO-free
// 3. WAL mode lets history queries run while another crawl is writing
package database
