// Package core is the swim result ingestion engine.
//
// It turns result workbooks into validated results for known athletes,
// events and meets, independent of any transport. Web handlers, the CLI and
// tests all drive it through [Service].
//
// # Pipeline
//
//  1. [workbook.Read] yields named sheets of string cells.
//  2. [FileProcessor] drops relay, lap, summary and open-water sheets,
//     detects the header row, extracts [RawRow] values and aggregates meet
//     name, city and date span.
//  3. [RowProcessor] moves each row through extraction, event resolution,
//     identity resolution and derivation. A row is either accepted as a
//     [Result] or skipped with a [SkipReason].
//  4. Every problem found becomes an [Issue] in a [Collector]. Issues never
//     stop processing.
//  5. [BatchInserter] writes each meet grouping in one transaction, skipping
//     results already stored under (meet, event, athlete), then applies the
//     queued athlete corrections.
//
// # Preview and Commit
//
// [Service.Preview] runs steps 1 to 4 and returns the [Report].
// [Service.Commit] does the same, refuses with [ErrBlockingIssues] when the
// report holds a missing athlete, and otherwise runs step 5. A failure in
// step 5 still returns the meets committed before it.
//
// Indices are rebuilt from the store for every run and are read-only while
// sheets are processed concurrently.
//
// # Error Handling
//
// Technical errors are mapped to user messages with support codes by
// [MapError]: ING for ingestion, DB for storage, FILE for file problems and
// UPL for upload control.
package core
