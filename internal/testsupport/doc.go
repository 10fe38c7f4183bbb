// Package testsupport provides shared helpers for slidecast tests: a
// scriptable in-memory backend fake and per-test configuration builders.
package testsupport
