//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Terms groups the terminology workflow targets.
type Terms mg.Namespace

// Sync imports changed glossary files and rebuilds the embedding index.
func (Terms) Sync() error {
	mg.Deps(Build)
	if err := sh.RunV(binPath(), "glossary", "import"); err != nil {
		return err
	}
	return sh.RunV(binPath(), "glossary", "reindex")
}

// Extract writes candidate terms for every document in documents/.
func (Terms) Extract() error {
	mg.Deps(Build, Terms.Sync)
	return sh.RunV(binPath(), "extract")
}

// Convert turns every PDF in documents/ into Markdown.
func Convert() error {
	mg.Deps(Build)
	pdfs, err := filepath.Glob(filepath.Join("documents", "*.pdf"))
	if err != nil || len(pdfs) == 0 {
		return err
	}
	return sh.RunV(binPath(), append([]string{"convert", "--output-dir", "documents"}, pdfs...)...)
}

// Translate translates every Markdown document in documents/.
func Translate() error {
	mg.Deps(Build, Terms.Sync)
	docs, err := filepath.Glob(filepath.Join("documents", "*.md"))
	if err != nil || len(docs) == 0 {
		return err
	}
	return sh.RunV(binPath(), append([]string{"translate"}, docs...)...)
}
