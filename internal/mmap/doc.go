// Package mmap provides memory-mapped file access for the file-backed
// location stores: read-write mappings that can grow with the backing file,
// and read-only mappings for blob access.
//
// Growth never shrinks an existing file and always produces a fresh
// mapping; callers must not retain byte slices across a Grow.
package mmap
