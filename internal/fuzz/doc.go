// Package fuzztests holds fuzz harnesses for the script front end and the
// snapshot decoder.
//
// Seeds come from testdata/scripts and a few inline edge cases. Run with
//
//	go test ./internal/fuzz -fuzz FuzzScriptRun -fuzztime 30s
package fuzztests
