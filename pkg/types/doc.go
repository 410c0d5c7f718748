// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the term-engine pipeline:
// glossary entries, resolution records, extraction candidates, document
// content blocks, and the configuration that ties the stages together.
package types
